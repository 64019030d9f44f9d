package scheduler

import (
	"github.com/treeroute/treeroute/internal/mattermost"
	"github.com/treeroute/treeroute/internal/service/leaderboard"
)

// buildDigestEntries keeps the leaders who actually saved something.
func buildDigestEntries(top []leaderboard.Entry) []mattermost.DigestEntry {
	entries := make([]mattermost.DigestEntry, 0, len(top))
	for _, e := range top {
		if e.Value <= 0 {
			continue
		}
		entries = append(entries, mattermost.DigestEntry{
			Rank:     e.Rank,
			Username: e.Username,
			Value:    e.Value,
		})
	}
	return entries
}
