package orchestration

import (
	"context"
	"errors"
	"math"

	"github.com/rotisserie/eris"
)

// ErrBudgetExhausted is returned when a project's accumulated cost has reached its spend limit.
var ErrBudgetExhausted = errors.New("Project budget exhausted. Increase or disable the spend limit to continue.")

// BudgetState is a project's spend ceiling and accumulated cost, in cents.
// A nil limit means unlimited.
type BudgetState struct {
	SpendLimitCents *int64
	TotalCostCents  int64
}

// CheckBudget admits new stage work unless a limit is set and the
// accumulated cost meets or exceeds it.
func CheckBudget(state BudgetState) error {
	if state.SpendLimitCents != nil && state.TotalCostCents >= *state.SpendLimitCents {
		return ErrBudgetExhausted
	}
	return nil
}

// USDToCents rounds a dollar amount to whole cents, clamping negatives to 0.
func USDToCents(usd float64) int64 {
	if math.IsNaN(usd) || usd <= 0 {
		return 0
	}
	return int64(math.Round(usd * 100))
}

// CostSink receives cost increments. storage.ProjectStore satisfies it.
type CostSink interface {
	IncrementCost(ctx context.Context, projectID string, cents int64) error
}

// ApplyCost adds a stage's realized cost to the project. Missing or
// sub-cent costs are skipped. Returns the cents applied.
func ApplyCost(ctx context.Context, sink CostSink, projectID string, costUSD *float64) (int64, error) {
	if costUSD == nil {
		return 0, nil
	}
	cents := USDToCents(*costUSD)
	if cents <= 0 {
		return 0, nil
	}
	if err := sink.IncrementCost(ctx, projectID, cents); err != nil {
		return 0, eris.Wrap(err, "apply stage cost")
	}
	return cents, nil
}
