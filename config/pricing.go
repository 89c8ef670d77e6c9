package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Pricing holds the fare tables. Amounts are in RM.
type Pricing struct {
	Chauffeur struct {
		PerKm      float64    `yaml:"per_km"`
		DefaultFee float64    `yaml:"default_base_fare"`
		Bands      []FareBand `yaml:"bands"`
	} `yaml:"chauffeur"`
	Cleaning struct {
		HourlyRates map[int]float64 `yaml:"hourly_rates"`
		PerPhoto    float64         `yaml:"dirty_clean_per_photo"`
	} `yaml:"cleaning"`
	CancellationFee float64 `yaml:"cancellation_fee"`
}

// FareBand applies BaseFare to pickups whose hour is in [FromHour, ToHour].
type FareBand struct {
	FromHour int     `yaml:"from_hour"`
	ToHour   int     `yaml:"to_hour"`
	BaseFare float64 `yaml:"base_fare"`
}

func DefaultPricing() Pricing {
	var p Pricing
	p.Chauffeur.PerKm = 4
	p.Chauffeur.DefaultFee = 40
	p.Chauffeur.Bands = []FareBand{
		{FromHour: 0, ToHour: 2, BaseFare: 60},
		{FromHour: 3, ToHour: 6, BaseFare: 80},
	}
	p.Cleaning.HourlyRates = map[int]float64{1: 35, 2: 55, 3: 75, 4: 90, 8: 150}
	p.Cleaning.PerPhoto = 10
	p.CancellationFee = 20
	return p
}

// LoadPricing reads a YAML pricing file on top of the defaults, so a file
// may override only the sections it names.
func LoadPricing(path string) (Pricing, error) {
	p := DefaultPricing()

	data, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse pricing file: %w", err)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

func (p Pricing) Validate() error {
	if p.Chauffeur.PerKm < 0 || p.Chauffeur.DefaultFee < 0 {
		return errors.New("chauffeur fares must not be negative")
	}
	for _, b := range p.Chauffeur.Bands {
		if b.FromHour < 0 || b.ToHour > 23 || b.FromHour > b.ToHour {
			return fmt.Errorf("invalid fare band %d-%d", b.FromHour, b.ToHour)
		}
	}
	if len(p.Cleaning.HourlyRates) == 0 {
		return errors.New("cleaning.hourly_rates is required")
	}
	if p.CancellationFee < 0 {
		return errors.New("cancellation_fee must not be negative")
	}
	return nil
}
