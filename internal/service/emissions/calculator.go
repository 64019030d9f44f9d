// Package emissions computes the environmental impact of a journey relative to driving.
package emissions

import (
	"errors"
	"fmt"
	"math"

	"github.com/treeroute/treeroute/internal/models"
)

// Validation errors.
var (
	ErrInvalidMode     = errors.New("invalid transport mode")
	ErrInvalidDistance = errors.New("invalid distance")
)

// MaxDistanceKm is the longest accepted journey, one equatorial circumference.
const MaxDistanceKm = 40075

// Factors are the per-kilometre constants for one transport mode.
type Factors struct {
	CO2KgPerKm   float64
	KcalPerKm    float64
	SpeedKmPerHr float64
}

// Indexed by models.Mode; these values are part of the stored-data contract.
var factors = [...]Factors{
	models.ModeCar:      {CO2KgPerKm: 0.171, KcalPerKm: 0, SpeedKmPerHr: 30},
	models.ModeBus:      {CO2KgPerKm: 0.097, KcalPerKm: 0, SpeedKmPerHr: 12},
	models.ModeTrain:    {CO2KgPerKm: 0.035, KcalPerKm: 0, SpeedKmPerHr: 45},
	models.ModeBike:     {CO2KgPerKm: 0, KcalPerKm: 28, SpeedKmPerHr: 15},
	models.ModeWalk:     {CO2KgPerKm: 0, KcalPerKm: 57, SpeedKmPerHr: 5},
	models.ModeEScooter: {CO2KgPerKm: 0.005, KcalPerKm: 4, SpeedKmPerHr: 20},
}

// Fails to compile when the table and the mode list disagree in length.
var _ = [1]struct{}{}[len(factors)-(models.NumModes+1)]

const (
	// EcosystemPenaltyRate is the extra harm charged to combustion and grid modes.
	EcosystemPenaltyRate = 0.10

	// TreeAbsorptionKgPerYear is the CO2 one tree absorbs in a year.
	TreeAbsorptionKgPerYear = 21.0
)

// Result holds the rounded metrics for one journey.
type Result struct {
	Mode          models.Mode `json:"mode"`
	DistanceKm    float64     `json:"distance_km"`
	CO2Emitted    float64     `json:"co2_emitted"`
	CO2Saved      float64     `json:"co2_saved"`
	Calories      float64     `json:"calories_burned"`
	TravelTimeMin float64     `json:"travel_time_min"`
}

// FactorsFor returns the constants for a mode.
func FactorsFor(mode models.Mode) (Factors, error) {
	if !mode.Valid() {
		return Factors{}, fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}
	return factors[mode], nil
}

// ParseMode parses a wire mode name, failing with ErrInvalidMode.
func ParseMode(s string) (models.Mode, error) {
	mode, ok := models.ParseMode(s)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
	return mode, nil
}

// ValidateDistance rejects non-finite, non-positive and implausibly long distances.
func ValidateDistance(distanceKm float64) error {
	if math.IsNaN(distanceKm) || distanceKm <= 0 || distanceKm > MaxDistanceKm {
		return fmt.Errorf("%w: %v km", ErrInvalidDistance, distanceKm)
	}
	return nil
}

// Calculate computes emissions, savings, calories and travel time.
// A positive, finite routeDurationMin replaces the speed-based estimate.
func Calculate(distanceKm float64, mode models.Mode, routeDurationMin *float64) (Result, error) {
	if err := ValidateDistance(distanceKm); err != nil {
		return Result{}, err
	}
	f, err := FactorsFor(mode)
	if err != nil {
		return Result{}, err
	}

	emitted := distanceKm * f.CO2KgPerKm
	penalty := 0.0
	if penalized(mode) {
		penalty = emitted * EcosystemPenaltyRate
	}
	saved := distanceKm*factors[models.ModeCar].CO2KgPerKm - emitted - penalty

	travelTime := distanceKm / f.SpeedKmPerHr * 60
	if d := routeDurationMin; d != nil && !math.IsNaN(*d) && !math.IsInf(*d, 0) && *d > 0 {
		travelTime = *d
	}

	return Result{
		Mode:          mode,
		DistanceKm:    distanceKm,
		CO2Emitted:    RoundKg(emitted),
		CO2Saved:      RoundKg(saved),
		Calories:      RoundKcal(distanceKm * f.KcalPerKm),
		TravelTimeMin: RoundMinutes(travelTime),
	}, nil
}

// CarBaseline returns the CO2 and travel time of driving the same distance.
func CarBaseline(distanceKm float64) (co2Kg, travelTimeMin float64) {
	car := factors[models.ModeCar]
	return RoundKg(distanceKm * car.CO2KgPerKm), RoundMinutes(distanceKm / car.SpeedKmPerHr * 60)
}

// Breakdown computes the metrics of every mode over the same distance.
func Breakdown(distanceKm float64) ([]Result, error) {
	if err := ValidateDistance(distanceKm); err != nil {
		return nil, err
	}

	results := make([]Result, 0, models.NumModes)
	for _, mode := range models.Modes() {
		r, err := Calculate(distanceKm, mode, nil)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// TreesEquivalent converts CO2 saved into trees' yearly absorption.
func TreesEquivalent(co2SavedKg float64) float64 {
	return RoundKg(co2SavedKg / TreeAbsorptionKgPerYear)
}

func penalized(mode models.Mode) bool {
	switch mode {
	case models.ModeCar, models.ModeBus, models.ModeTrain:
		return true
	default:
		return false
	}
}
