package orchestration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckBudget(t *testing.T) {
	limit := func(v int64) *int64 { return &v }
	tests := []struct {
		name  string
		state BudgetState
		want  error
	}{
		{"unlimited", BudgetState{TotalCostCents: 1_000_000}, nil},
		{"below limit", BudgetState{SpendLimitCents: limit(500), TotalCostCents: 499}, nil},
		{"at limit", BudgetState{SpendLimitCents: limit(500), TotalCostCents: 500}, ErrBudgetExhausted},
		{"over limit", BudgetState{SpendLimitCents: limit(500), TotalCostCents: 650}, ErrBudgetExhausted},
		{"zero limit", BudgetState{SpendLimitCents: limit(0)}, ErrBudgetExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckBudget(tt.state))
		})
	}
	assert.Equal(t,
		"Project budget exhausted. Increase or disable the spend limit to continue.",
		ErrBudgetExhausted.Error())
}

func TestUSDToCents(t *testing.T) {
	tests := []struct {
		usd  float64
		want int64
	}{
		{0, 0},
		{0.004, 0},
		{0.006, 1},
		{0.08, 8},
		{1.234, 123},
		{12.5, 1250},
		{-3, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, USDToCents(tt.usd), "USDToCents(%v)", tt.usd)
	}
}

type sinkFunc func(ctx context.Context, projectID string, cents int64) error

func (f sinkFunc) IncrementCost(ctx context.Context, projectID string, cents int64) error {
	return f(ctx, projectID, cents)
}

func TestApplyCost(t *testing.T) {
	var applied []int64
	sink := sinkFunc(func(_ context.Context, _ string, cents int64) error {
		applied = append(applied, cents)
		return nil
	})
	usd := func(v float64) *float64 { return &v }

	for _, cost := range []*float64{nil, usd(0.001), usd(-1), usd(0.5), usd(0.08)} {
		_, err := ApplyCost(context.Background(), sink, "p", cost)
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{50, 8}, applied, "missing and sub-cent costs are skipped")

	failing := sinkFunc(func(context.Context, string, int64) error { return errors.New("disk full") })
	cents, err := ApplyCost(context.Background(), failing, "p", usd(1))
	require.Error(t, err)
	assert.Zero(t, cents)
	assert.Contains(t, err.Error(), "disk full")
}
