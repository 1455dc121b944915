package simulation

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/heatsim/core/model"
)

// SourceStorage is the EnergyBySource key of heat discharged from the tank.
const SourceStorage = "storage"

// Summarize aggregates step results. Heat by source is keyed by unit ID
// plus SourceStorage.
func Summarize(results []model.TimestepResult) model.Summary {
	s := model.Summary{Steps: len(results), EnergyBySource: map[string]float64{}}
	if len(results) == 0 {
		return s
	}
	socs := make([]float64, len(results))
	costs := make([]float64, len(results))
	for i, r := range results {
		socs[i] = r.Storage.SoC
		costs[i] = r.StepCost
		if r.Flags.UnmetDemand {
			s.UnmetSteps++
		}
		if r.Flags.Overflow {
			s.OverflowSteps++
		}
		if r.Flags.Underflow {
			s.UnderflowSteps++
		}
		s.LoadKWh += r.LoadKWh
		s.DeliveredKWh += r.DeliveredKWh
		s.LossKWh += r.LossKWh
		s.EnergyBySource[SourceStorage] += r.StorageOutKWh
		for _, o := range r.Outputs {
			s.EnergyBySource[o.UnitID] += o.HeatKWh
			if o.ElectricityKWh > 0 {
				s.ElectricityProducedKWh += o.ElectricityKWh
			} else {
				s.ElectricityConsumedKWh -= o.ElectricityKWh
			}
		}
	}
	s.TotalCost = floats.Sum(costs)
	s.MeanSoC = stat.Mean(socs, nil)
	s.FinalSoC = socs[len(socs)-1]
	return s
}
