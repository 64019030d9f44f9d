package leaderboard

import (
	"fmt"

	"github.com/treeroute/treeroute/internal/models"
	"github.com/treeroute/treeroute/internal/service/emissions"
)

const (
	// Swapping two car trips a week for the bike, over four weeks.
	swappedTripsPerMonth = 2 * 4

	walkableCarTripKm = 5.0
	scooterCarTripKm  = 10.0
	cyclableBusTripKm = 8.0

	lowScore  = 50
	highScore = 80
	minScored = 3
)

// Recommendation is a contextual hint shown on the dashboard.
type Recommendation struct {
	Icon string `json:"icon"`
	Text string `json:"text"`
}

// Recommendations derives hints from a user's habits, most actionable first.
// The result is never nil.
func Recommendations(summary UserSummary, totals models.JourneyTotals, byMode map[models.Mode]models.JourneyTotals, score int) []Recommendation {
	recs := []Recommendation{}

	if car := byMode[models.ModeCar]; car.Journeys > 0 {
		avg := car.DistanceKm / float64(car.Journeys)
		recs = append(recs, Recommendation{
			Icon: "🚴",
			Text: fmt.Sprintf("Cycle instead of driving twice a week to save ~%.1fkg CO₂ per month",
				emissions.Round(avg*factor(models.ModeCar).CO2KgPerKm*swappedTripsPerMonth, 1)),
		})
		if avg <= walkableCarTripKm {
			recs = append(recs, Recommendation{
				Icon: "🚶",
				Text: fmt.Sprintf("Your average car journey is only %.1fkm, walkable in about %d minutes",
					avg, minutesAt(avg, models.ModeWalk)),
			})
		}
		if avg <= scooterCarTripKm {
			recs = append(recs, Recommendation{
				Icon: "🛴",
				Text: fmt.Sprintf("An e-scooter could cover your %.1fkm car trips in ~%d min with almost zero emissions",
					avg, minutesAt(avg, models.ModeEScooter)),
			})
		}
	}

	if bus := byMode[models.ModeBus]; bus.Journeys > 0 {
		if avg := bus.DistanceKm / float64(bus.Journeys); avg <= cyclableBusTripKm {
			recs = append(recs, Recommendation{
				Icon: "🚴",
				Text: fmt.Sprintf("Your average bus trip is %.1fkm. Cycling it would burn ~%d calories and produce zero emissions",
					avg, emissions.RoundInt(avg*factor(models.ModeBike).KcalPerKm)),
			})
		}
	}

	switch {
	case summary.CurrentStreak > 0 && summary.CurrentStreak < summary.LongestStreak:
		recs = append(recs, Recommendation{
			Icon: "🔥",
			Text: fmt.Sprintf("You're on a %d-day streak! Your record is %d days, keep going to beat it",
				summary.CurrentStreak, summary.LongestStreak),
		})
	case summary.CurrentStreak == 0 && totals.Journeys > 0:
		recs = append(recs, Recommendation{
			Icon: "📅",
			Text: fmt.Sprintf("Log a journey today to start a new streak! Your longest was %d days", summary.LongestStreak),
		})
	}

	if totals.CO2Saved > 0 && totals.CO2Saved < emissions.TreeAbsorptionKgPerYear {
		recs = append(recs, Recommendation{
			Icon: "🌳",
			Text: fmt.Sprintf("Save %.1fkg more CO₂ to match a whole tree's annual absorption (%.0fkg)",
				emissions.TreeAbsorptionKgPerYear-totals.CO2Saved, emissions.TreeAbsorptionKgPerYear),
		})
	}

	switch {
	case score < lowScore && totals.Journeys >= minScored:
		recs = append(recs, Recommendation{
			Icon: "🌱",
			Text: fmt.Sprintf("Your sustainability score is %d%%. Try replacing one car trip with walking or cycling to boost it", score),
		})
	case score >= highScore:
		recs = append(recs, Recommendation{
			Icon: "🌟",
			Text: fmt.Sprintf("Amazing %d%% sustainability score! You're a green transport champion", score),
		})
	}

	return recs
}

// factor returns the constants of a declared mode.
func factor(mode models.Mode) emissions.Factors {
	f, _ := emissions.FactorsFor(mode)
	return f
}

func minutesAt(distanceKm float64, mode models.Mode) int {
	return emissions.RoundInt(distanceKm / factor(mode).SpeedKmPerHr * 60)
}
