package model

import (
	"math"
	"time"
)

// Column names a measured quantity in the merged plant dataset.
type Column string

const (
	ColumnDCPower     Column = "DC_POWER"
	ColumnACPower     Column = "AC_POWER"
	ColumnDailyYield  Column = "DAILY_YIELD"
	ColumnTotalYield  Column = "TOTAL_YIELD"
	ColumnAmbientTemp Column = "AMBIENT_TEMPERATURE"
	ColumnModuleTemp  Column = "MODULE_TEMPERATURE"
	ColumnIrradiation Column = "IRRADIATION"
)

// ColumnInfo holds display name and unit for a column.
type ColumnInfo struct {
	Name string
	Unit string
}

// ColumnCatalog maps every known Column to its display name and unit.
var ColumnCatalog = map[Column]ColumnInfo{
	ColumnDCPower:     {Name: "DC Power", Unit: "kW"},
	ColumnACPower:     {Name: "AC Power", Unit: "kW"},
	ColumnDailyYield:  {Name: "Daily Yield", Unit: "kWh"},
	ColumnTotalYield:  {Name: "Total Yield", Unit: "kWh"},
	ColumnAmbientTemp: {Name: "Ambient Temperature", Unit: "°C"},
	ColumnModuleTemp:  {Name: "Module Temperature", Unit: "°C"},
	ColumnIrradiation: {Name: "Irradiation", Unit: "kW/m²"},
}

// Reading is one 15-minute sample of a single inverter. Missing values are NaN.
type Reading struct {
	Timestamp   time.Time
	Plant       Plant
	InverterID  int
	DCPower     float64
	ACPower     float64
	DailyYield  float64
	TotalYield  float64
	AmbientTemp float64
	ModuleTemp  float64
	Irradiation float64
}

// NewReading returns a reading with every measured value marked missing.
func NewReading(plant Plant, inverterID int, ts time.Time) Reading {
	nan := math.NaN()
	return Reading{
		Timestamp:   ts,
		Plant:       plant,
		InverterID:  inverterID,
		DCPower:     nan,
		ACPower:     nan,
		DailyYield:  nan,
		TotalYield:  nan,
		AmbientTemp: nan,
		ModuleTemp:  nan,
		Irradiation: nan,
	}
}

// HasTarget reports whether the forecast target (AC power) is present.
func (r Reading) HasTarget() bool {
	return !math.IsNaN(r.ACPower)
}

// Value returns the value of a column and whether the column is known.
func (r Reading) Value(c Column) (float64, bool) {
	switch c {
	case ColumnDCPower:
		return r.DCPower, true
	case ColumnACPower:
		return r.ACPower, true
	case ColumnDailyYield:
		return r.DailyYield, true
	case ColumnTotalYield:
		return r.TotalYield, true
	case ColumnAmbientTemp:
		return r.AmbientTemp, true
	case ColumnModuleTemp:
		return r.ModuleTemp, true
	case ColumnIrradiation:
		return r.Irradiation, true
	}
	return math.NaN(), false
}

// Set assigns a column value. Unknown columns are ignored and reported as false.
func (r *Reading) Set(c Column, v float64) bool {
	switch c {
	case ColumnDCPower:
		r.DCPower = v
	case ColumnACPower:
		r.ACPower = v
	case ColumnDailyYield:
		r.DailyYield = v
	case ColumnTotalYield:
		r.TotalYield = v
	case ColumnAmbientTemp:
		r.AmbientTemp = v
	case ColumnModuleTemp:
		r.ModuleTemp = v
	case ColumnIrradiation:
		r.Irradiation = v
	default:
		return false
	}
	return true
}

// Complete reports whether every listed column holds a value.
func (r Reading) Complete(cols []Column) bool {
	for _, c := range cols {
		v, ok := r.Value(c)
		if !ok || math.IsNaN(v) {
			return false
		}
	}
	return true
}

type TimeRange struct {
	Start time.Time
	End   time.Time
}
