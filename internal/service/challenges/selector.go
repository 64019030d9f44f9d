// Package challenges picks each user's daily challenges.
//
// Selection is a pure function of (date, user): the seed is the 64-bit FNV-1a
// hash of "YYYY-MM-DD|<userID>", fed to a PCG generator. Indices are drawn as
// Uint64 mod len(pool), skipping repeats until PerDay distinct challenges are
// chosen. Nothing is stored; completion is recomputed from that day's journeys.
package challenges

import (
	"hash/fnv"
	"math/rand/v2"
	"strconv"

	"github.com/treeroute/treeroute/internal/models"
)

// PerDay is the number of challenges offered each day.
const PerDay = 3

// pcgIncrement derives the second PCG word from the seed.
const pcgIncrement = 0x9E3779B97F4A7C15

// Challenge is one daily micro-goal.
type Challenge struct {
	Key         string `json:"key"`
	Description string `json:"description"`
	XP          int    `json:"xp"`

	done func(Progress) bool
}

// Progress summarizes a user's journeys on one day.
type Progress struct {
	Journeys         int
	WalkJourneys     int
	BikeJourneys     int
	CO2Saved         float64
	Calories         float64
	NonCarDistanceKm float64
}

// Status is a selected challenge with its live completion state.
type Status struct {
	Challenge
	Completed bool `json:"completed"`
}

var pool = [...]Challenge{
	{"walk_today", "Take at least one walk today", 20,
		func(p Progress) bool { return p.WalkJourneys >= 1 }},
	{"save_2kg", "Save 2 kg of CO2 today", 30,
		func(p Progress) bool { return p.CO2Saved >= 2 }},
	{"log_3", "Log 3 journeys today", 25,
		func(p Progress) bool { return p.Journeys >= 3 }},
	{"bike_today", "Ride a bike today", 20,
		func(p Progress) bool { return p.BikeJourneys >= 1 }},
	{"burn_200cal", "Burn 200 calories travelling", 25,
		func(p Progress) bool { return p.Calories >= 200 }},
	{"distance_10", "Travel 10 km without a car", 30,
		func(p Progress) bool { return p.NonCarDistanceKm >= 10 }},
}

// Fails to compile if the pool cannot supply PerDay distinct challenges.
var _ = [1]struct{}{}[min(len(pool)-PerDay, 0)]

// Pool returns every challenge that can be offered.
func Pool() []Challenge {
	out := make([]Challenge, len(pool))
	copy(out, pool[:])
	return out
}

// Seed derives the generator seed for a user on a date.
func Seed(date models.Date, userID uint) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(date.String() + "|" + strconv.FormatUint(uint64(userID), 10)))
	return h.Sum64()
}

// Select returns the PerDay challenges of a user on a date.
func Select(date models.Date, userID uint) []Challenge {
	seed := Seed(date, userID)
	rng := rand.New(rand.NewPCG(seed, seed^pcgIncrement))

	n := uint64(len(pool))
	chosen := make([]Challenge, 0, PerDay)
	var taken [len(pool)]bool
	for len(chosen) < PerDay {
		i := rng.Uint64() % n
		if taken[i] {
			continue
		}
		taken[i] = true
		chosen = append(chosen, pool[i])
	}
	return chosen
}

// Summarize folds a day's journeys into progress counters.
func Summarize(journeys []models.Journey) Progress {
	var p Progress
	for _, j := range journeys {
		p.Journeys++
		p.CO2Saved += j.CO2Saved
		p.Calories += j.CaloriesBurned
		switch j.Mode {
		case models.ModeWalk:
			p.WalkJourneys++
		case models.ModeBike:
			p.BikeJourneys++
		}
		if j.Mode != models.ModeCar {
			p.NonCarDistanceKm += j.DistanceKm
		}
	}
	return p
}

// StatusFor selects a user's challenges for a date and marks the ones the
// day's journeys complete.
func StatusFor(date models.Date, userID uint, journeys []models.Journey) []Status {
	progress := Summarize(journeys)

	selected := Select(date, userID)
	out := make([]Status, 0, len(selected))
	for _, c := range selected {
		out = append(out, Status{Challenge: c, Completed: c.done(progress)})
	}
	return out
}
