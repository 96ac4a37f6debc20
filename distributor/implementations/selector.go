package implementations

import (
	"math"

	"logdistributor/config"
	"logdistributor/distributor/interfaces"
)

// WeightedSelector implements the two-phase selection algorithm from
// spec.md §4.3: deviation minimization (Phase A) with a deficit-override
// emergency catch-up (Phase B). It is pure with respect to the registry
// it reads — it never mutates analyzer state.
type WeightedSelector struct {
	deficitThreshold float64
}

var _ interfaces.Selector = (*WeightedSelector)(nil)

// NewWeightedSelector builds a selector using the configured deficit
// override threshold.
func NewWeightedSelector(cfg *config.Config) *WeightedSelector {
	return &WeightedSelector{deficitThreshold: cfg.DeficitThreshold}
}

// Select implements interfaces.Selector.
func (s *WeightedSelector) Select(registry interfaces.Registry, totalMessagesProcessed int64, m int) string {
	snapshot := registry.Snapshot()
	total := float64(totalMessagesProcessed)
	futureTotal := total + float64(m)

	var (
		bestID        = interfaces.NoTarget
		bestDeviation = math.Inf(1)

		deficitID   = interfaces.NoTarget
		bestDeficit = 0.0
	)

	for _, a := range snapshot {
		if !a.Online {
			continue
		}

		// Phase A: deviation minimization over the counterfactual where
		// this analyzer receives the packet.
		futureIdeal := futureTotal * a.Weight
		futureCount := float64(a.MessageCount) + float64(m)
		deviation := math.Abs(futureCount - futureIdeal)

		if deviation < bestDeviation {
			bestDeviation = deviation
			bestID = a.ID
		}

		// Phase B: track the analyzer with the largest positive deficit
		// against its *current* ideal share.
		currentDeficit := total*a.Weight - float64(a.MessageCount)
		if currentDeficit > bestDeficit {
			bestDeficit = currentDeficit
			deficitID = a.ID
		}
	}

	if bestID == interfaces.NoTarget {
		return interfaces.NoTarget
	}

	if deficitID != interfaces.NoTarget && bestDeficit > s.deficitThreshold {
		return deficitID
	}

	return bestID
}
