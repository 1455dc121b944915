package dispatch

import (
	"math"

	"github.com/kilianp07/heatsim/core/generator"
	"github.com/kilianp07/heatsim/core/model"
)

const (
	tierRegular = iota
	tierLastResort
)

// Predicate decides whether a unit may be ranked in the current step.
type Predicate struct {
	Name  string
	Allow func(u generator.Unit, e *env) bool
}

// Entry is one row of the priority table.
type Entry struct {
	Unit     generator.Unit
	Tier     int
	Cost     func(generator.Conditions) float64
	Eligible []Predicate
}

// RankEntry explains the position of a unit in one decision.
type RankEntry struct {
	UnitID       string              `json:"unit_id"`
	Type         model.GeneratorType `json:"type"`
	Tier         int                 `json:"tier"`
	MarginalCost float64             `json:"marginal_cost"`
	Eligible     bool                `json:"eligible"`
	Reason       string              `json:"reason,omitempty"`
	SetpointKW   float64             `json:"setpoint_kw"`
}

// fuelCoster is implemented by units whose heat cost is driven by fuel.
type fuelCoster interface {
	FuelCostPerHeatKWh(generator.Conditions) float64
}

// env is the per-step view the predicates evaluate against.
type env struct {
	cfg          Config
	input        model.TimestepInput
	loadKWh      float64
	requiredC    float64
	cond         map[string]generator.Conditions
	chpFuelCost  float64
	hasCHP       bool
	heatPumpCost map[string]float64
}

// BuildTable derives the priority table from the configured units. Backup
// units are ranked behind everything else.
func BuildTable(units []generator.Unit) []Entry {
	table := make([]Entry, 0, len(units))
	for _, u := range units {
		e := Entry{
			Unit:     u,
			Tier:     tierRegular,
			Cost:     u.MarginalCost,
			Eligible: []Predicate{flowTemperature},
		}
		switch u.Type() {
		case model.GeneratorBackup:
			e.Tier = tierLastResort
		case model.GeneratorHeatPump:
			e.Eligible = append(e.Eligible, heatPumpPriceGate)
		}
		table = append(table, e)
	}
	return table
}

// flowTemperature excludes units that cannot reach the supply requirement
// while there is load to serve.
var flowTemperature = Predicate{
	Name: "flow_temperature",
	Allow: func(u generator.Unit, e *env) bool {
		return e.loadKWh <= 0 || u.Spec().FlowTempC >= e.requiredC
	},
}

// heatPumpPriceGate keeps heat pumps out of high price periods.
var heatPumpPriceGate = Predicate{
	Name: "heat_pump_price_gate",
	Allow: func(u generator.Unit, e *env) bool {
		if e.hasCHP {
			return e.heatPumpCost[u.ID()] <= e.cfg.HeatPumpCostRatio*e.chpFuelCost+1e-12
		}
		if e.cfg.HeatPumpMaxPrice > 0 {
			return e.input.PricePerKWh <= e.cfg.HeatPumpMaxPrice
		}
		return true
	},
}

func typeOrder(t model.GeneratorType) int {
	switch t {
	case model.GeneratorCHP:
		return 0
	case model.GeneratorHeatPump:
		return 1
	case model.GeneratorBackup:
		return 2
	default:
		return 3
	}
}

// less orders by tier, marginal cost, unit type and ID.
func less(a, b RankEntry) bool {
	if a.Tier != b.Tier {
		return a.Tier < b.Tier
	}
	if math.Abs(a.MarginalCost-b.MarginalCost) > 1e-12 {
		return a.MarginalCost < b.MarginalCost
	}
	if ta, tb := typeOrder(a.Type), typeOrder(b.Type); ta != tb {
		return ta < tb
	}
	return a.UnitID < b.UnitID
}
