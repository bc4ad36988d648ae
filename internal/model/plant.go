package model

import (
	"fmt"
	"sort"
)

// Plant identifies a solar site. Only the values in Profiles are valid.
type Plant int

const (
	Plant1 Plant = 1
	Plant2 Plant = 2
)

// PlantProfile describes how forecasts are produced for a plant.
type PlantProfile struct {
	// ModelID names the trained model artifact.
	ModelID string
	// Features lists the raw input columns in model order. The cyclical
	// time columns are appended after them.
	Features []Column
	// Target is the forecast column.
	Target Column
}

var defaultFeatures = []Column{
	ColumnACPower,
	ColumnDCPower,
	ColumnAmbientTemp,
	ColumnModuleTemp,
	ColumnIrradiation,
}

// Profiles is the lookup table for every supported plant.
var Profiles = map[Plant]PlantProfile{
	Plant1: {ModelID: "Plant1_inverter_Model_V2", Features: defaultFeatures, Target: ColumnACPower},
	Plant2: {ModelID: "Plant2_inverter_Model", Features: defaultFeatures, Target: ColumnACPower},
}

// ParsePlant validates a numeric plant identifier.
func ParsePlant(n int) (Plant, error) {
	p := Plant(n)
	if _, ok := Profiles[p]; !ok {
		return 0, fmt.Errorf("unknown plant %d", n)
	}
	return p, nil
}

// Plants returns every supported plant in ascending order.
func Plants() []Plant {
	plants := make([]Plant, 0, len(Profiles))
	for p := range Profiles {
		plants = append(plants, p)
	}
	sort.Slice(plants, func(i, j int) bool { return plants[i] < plants[j] })
	return plants
}

// Profile returns the lookup table entry for p.
func (p Plant) Profile() (PlantProfile, bool) {
	prof, ok := Profiles[p]
	return prof, ok
}

// Measurement is the time-series measurement name used for the plant.
func (p Plant) Measurement() string {
	return fmt.Sprintf("plant%d", int(p))
}

func (p Plant) String() string {
	return fmt.Sprintf("Plant%d", int(p))
}
