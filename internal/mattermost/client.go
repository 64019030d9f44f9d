// Package mattermost provides webhook client for sending notifications to Mattermost.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/treeroute/treeroute/internal/config"
	prommetrics "github.com/treeroute/treeroute/internal/metrics"
	"github.com/treeroute/treeroute/pkg/logger"
)

const botUsername = "TreeRoute"

// Notification kinds, used as the failure metric label.
const (
	KindAchievement = "achievement"
	KindLevelUp     = "level_up"
	KindDigest      = "leaderboard_digest"
)

// Client handles Mattermost webhook notifications.
type Client struct {
	webhookURL string
	channel    string
	enabled    bool
	log        *logger.Logger
}

// NewClient creates a new Mattermost client.
func NewClient(cfg *config.MattermostConfig, log *logger.Logger) *Client {
	return &Client{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		enabled:    cfg.Enabled,
		log:        log,
	}
}

// Message represents a Mattermost message payload.
type Message struct {
	Channel     string       `json:"channel,omitempty"`
	Username    string       `json:"username,omitempty"`
	Text        string       `json:"text,omitempty"`
	IconURL     string       `json:"icon_url,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment represents a message attachment.
type Attachment struct {
	Fallback string  `json:"fallback,omitempty"`
	Color    string  `json:"color,omitempty"`
	Pretext  string  `json:"pretext,omitempty"`
	Title    string  `json:"title,omitempty"`
	Text     string  `json:"text,omitempty"`
	Fields   []Field `json:"fields,omitempty"`
	Footer   string  `json:"footer,omitempty"`
}

// Field represents a message field.
type Field struct {
	Short bool   `json:"short"`
	Title string `json:"title"`
	Value string `json:"value"`
}

// DigestEntry is one line of the leaderboard digest.
type DigestEntry struct {
	Rank     int
	Username string
	Value    float64
}

// Enabled reports whether messages are actually sent.
func (c *Client) Enabled() bool {
	return c.enabled
}

// SendMessage sends a message to Mattermost.
func (c *Client) SendMessage(msg *Message) error {
	if !c.enabled {
		c.log.Debug().Msg("Mattermost is disabled, skipping message")
		return nil
	}

	if msg.Channel == "" {
		msg.Channel = c.channel
	}
	if msg.Username == "" {
		msg.Username = botUsername
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to Mattermost: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mattermost returned status %d", resp.StatusCode)
	}

	c.log.Debug().
		Str("channel", msg.Channel).
		Msg("Sent message to Mattermost")

	return nil
}

// SendSimpleMessage sends a simple text message.
func (c *Client) SendSimpleMessage(text string) error {
	return c.SendMessage(&Message{
		Text: text,
	})
}

func (c *Client) send(kind string, msg *Message) error {
	if err := c.SendMessage(msg); err != nil {
		prommetrics.RecordNotificationFailed(kind)
		return err
	}
	return nil
}

// AnnounceAchievement posts an achievement unlock.
func (c *Client) AnnounceAchievement(username, name, icon, description string) error {
	return c.send(KindAchievement, &Message{
		Attachments: []Attachment{{
			Fallback: fmt.Sprintf("%s unlocked %s", username, name),
			Color:    "#2e7d32",
			Title:    fmt.Sprintf("%s %s", icon, name),
			Text:     fmt.Sprintf("@%s unlocked **%s**: %s", username, name, description),
		}},
	})
}

// AnnounceLevelUp posts a level up.
func (c *Client) AnnounceLevelUp(username string, level int, levelName string) error {
	return c.send(KindLevelUp, &Message{
		Text: fmt.Sprintf("🌱 @%s reached level %d: **%s**", username, level, levelName),
	})
}

// SendLeaderboardDigest posts the top entries of a leaderboard.
func (c *Client) SendLeaderboardDigest(title, unit string, entries []DigestEntry) error {
	if len(entries) == 0 {
		c.log.Debug().Str("title", title).Msg("Empty leaderboard, skipping digest")
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### 🌍 %s\n\n", title)
	b.WriteString("| # | Traveller | Value |\n|---|---|---|\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "| %s | @%s | %.1f %s |\n", rankLabel(e.Rank), e.Username, e.Value, unit)
	}

	return c.send(KindDigest, &Message{Text: b.String()})
}

func rankLabel(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("%d", rank)
	}
}
