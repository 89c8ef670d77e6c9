// Package pricing computes the fare breakdown fixed on an order at creation.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"ridebook/config"
	"ridebook/pkg/models"
)

var (
	ErrInvalidDistance  = errors.New("distance must be positive")
	ErrUnsupportedHours = errors.New("unsupported cleaning duration")
	ErrTooManyPhotos    = errors.New("too many photos")
)

const maxPhotos = 20

type Calculator struct {
	table config.Pricing
	loc   *time.Location
}

// New builds a calculator. Pickup hours are read in loc; nil means UTC.
func New(table config.Pricing, loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	return &Calculator{table: table, loc: loc}
}

// Chauffeur prices a ride: the base fare of the band the pickup hour falls
// in plus a per-km distance fare.
func (c *Calculator) Chauffeur(d models.ChauffeurDetails) (models.PriceDetails, error) {
	if d.DistanceKm <= 0 || math.IsNaN(d.DistanceKm) || math.IsInf(d.DistanceKm, 0) {
		return models.PriceDetails{}, ErrInvalidDistance
	}

	base := c.baseFare(d.PickupTime.In(c.loc).Hour())
	distanceFare := round2(d.DistanceKm * c.table.Chauffeur.PerKm)
	total := round2(base + distanceFare)

	return models.PriceDetails{
		BaseFare:     base,
		DistanceInKm: round2(d.DistanceKm),
		DistanceFare: distanceFare,
		TotalFare:    total,
		Total:        total,
	}, nil
}

func (c *Calculator) baseFare(hour int) float64 {
	for _, b := range c.table.Chauffeur.Bands {
		if hour >= b.FromHour && hour <= b.ToHour {
			return b.BaseFare
		}
	}
	return c.table.Chauffeur.DefaultFee
}

// Cleaning prices a cleaning job: the fixed rate for the booked hours plus a
// surcharge for every dirty-clean photo.
func (c *Calculator) Cleaning(d models.CleaningDetails) (models.PriceDetails, error) {
	rate, ok := c.table.Cleaning.HourlyRates[d.Hours]
	if !ok {
		return models.PriceDetails{}, fmt.Errorf("%w: %d hours (supported %v)", ErrUnsupportedHours, d.Hours, c.SupportedHours())
	}
	if len(d.Photos) > maxPhotos {
		return models.PriceDetails{}, ErrTooManyPhotos
	}

	dirty := round2(float64(len(d.Photos)) * c.table.Cleaning.PerPhoto)
	total := round2(rate + dirty)

	return models.PriceDetails{
		Hours:               d.Hours,
		GeneralCleaningCost: rate,
		DirtyCleanCost:      dirty,
		TotalCost:           total,
		Total:               total,
	}, nil
}

func (c *Calculator) SupportedHours() []int {
	hours := make([]int, 0, len(c.table.Cleaning.HourlyRates))
	for h := range c.table.Cleaning.HourlyRates {
		hours = append(hours, h)
	}
	sort.Ints(hours)
	return hours
}

func (c *Calculator) CancellationFee() float64 {
	return c.table.CancellationFee
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
