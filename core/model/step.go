package model

import "time"

// TimestepInput holds the external, read-only values for one step.
type TimestepInput struct {
	Index       int       `json:"index"`
	Time        time.Time `json:"time"`
	LoadKW      float64   `json:"load_kw"`
	PricePerKWh float64   `json:"price_per_kwh"`
	AmbientC    float64   `json:"ambient_c"`
	// SupplySetpointC overrides the heating curve when positive.
	SupplySetpointC float64 `json:"supply_setpoint_c"`
	FuelPricePerKWh float64 `json:"fuel_price_per_kwh"`
	// HasFuelPrice is false when no fuel price series was supplied; units then
	// fall back to their configured fuel price.
	HasFuelPrice bool `json:"has_fuel_price"`
}

// SupplyAction is the verdict of the temperature controller.
type SupplyAction struct {
	OK          bool    `json:"ok"`
	RequiredC   float64 `json:"required_c"`
	BoostDeltaC float64 `json:"boost_delta_c"`
}

// Flags make per-step infeasibilities explicit.
type Flags struct {
	UnmetDemand      bool `json:"unmet_demand"`
	Overflow         bool `json:"overflow"`
	Underflow        bool `json:"underflow"`
	InputClamped     bool `json:"input_clamped"`
	GeneratorClamped bool `json:"generator_clamped"`
}

// Any reports whether at least one flag is raised.
func (f Flags) Any() bool {
	return f.UnmetDemand || f.Overflow || f.Underflow || f.InputClamped || f.GeneratorClamped
}

// TimestepResult is the append-only record of one simulated step.
type TimestepResult struct {
	Index           int               `json:"index"`
	Time            time.Time         `json:"time"`
	Input           TimestepInput     `json:"input"`
	Storage         StorageState      `json:"storage"`
	Outputs         []GeneratorOutput `json:"outputs"`
	SupplyTempC     float64           `json:"supply_temp_c"`
	ReturnTempC     float64           `json:"return_temp_c"`
	RequiredSupplyC float64           `json:"required_supply_c"`
	LoadKWh         float64           `json:"load_kwh"`
	DeliveredKWh    float64           `json:"delivered_kwh"`
	StorageOutKWh   float64           `json:"storage_out_kwh"`
	StorageInKWh    float64           `json:"storage_in_kwh"`
	LossKWh         float64           `json:"loss_kwh"`
	Flags           Flags             `json:"flags"`
	StepCost        float64           `json:"step_cost"`
	CumulativeCost  float64           `json:"cumulative_cost"`
	// Action is the controller check against the storage after the step.
	Action SupplyAction `json:"action"`
	// Explanation describes the dispatch decision.
	Explanation string `json:"explanation"`
}

// GeneratorHeatKWh returns the heat produced by all units in the step.
func (r TimestepResult) GeneratorHeatKWh() float64 {
	var h float64
	for _, o := range r.Outputs {
		h += o.HeatKWh
	}
	return h
}

// Summary aggregates a complete run.
type Summary struct {
	Steps                  int                `json:"steps"`
	TotalCost              float64            `json:"total_cost"`
	UnmetSteps             int                `json:"unmet_steps"`
	OverflowSteps          int                `json:"overflow_steps"`
	UnderflowSteps         int                `json:"underflow_steps"`
	LoadKWh                float64            `json:"load_kwh"`
	DeliveredKWh           float64            `json:"delivered_kwh"`
	LossKWh                float64            `json:"loss_kwh"`
	EnergyBySource         map[string]float64 `json:"energy_by_source"`
	ElectricityProducedKWh float64            `json:"electricity_produced_kwh"`
	ElectricityConsumedKWh float64            `json:"electricity_consumed_kwh"`
	MeanSoC                float64            `json:"mean_soc"`
	FinalSoC               float64            `json:"final_soc"`
}
