package domain

import (
	"errors"
	"math"
	"strings"
)

// LoadItem is one row of an application's domestic load table. Loads are in kVA.
type LoadItem struct {
	ID                  int64   `json:"id"`
	ApplicationID       int64   `json:"application_id"`
	ConnectionType      string  `json:"connection_type"`
	Phases              string  `json:"phases"`
	HeatingType         string  `json:"heating_type"`
	Bedrooms            string  `json:"bedrooms"`
	Quantity            int     `json:"quantity"`
	LoadPerInstallation float64 `json:"load_per_installation"`
	SummedLoad          float64 `json:"summed_load"`
}

// ComputeSummedLoad sets SummedLoad to Quantity x LoadPerInstallation.
func (i *LoadItem) ComputeSummedLoad() {
	i.SummedLoad = float64(i.Quantity) * i.LoadPerInstallation
}

// ThreePhase reports whether the item asks for a three-phase supply.
func (i *LoadItem) ThreePhase() bool {
	p := strings.ToLower(strings.TrimSpace(i.Phases))
	return p == "three" || p == "3"
}

// Validate returns an error describing the first validation failure.
func (i *LoadItem) Validate() error {
	if i.Quantity < 0 {
		return errors.New("quantity must not be negative")
	}
	for _, v := range []float64{i.LoadPerInstallation, i.SummedLoad} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("loads must be non-negative numbers")
		}
	}
	return nil
}
