package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyBoundaries(t *testing.T) {
	ctx := context.Background()
	engine, err := NewDefaultEngine(ctx)
	require.NoError(t, err)

	tests := []struct {
		name         string
		risk         float64
		verification float64
		want         string
	}{
		{"both at 80", 80, 80, "APPROVED"},
		{"risk just below 80", 79.9, 80, "CONDITIONAL APPROVAL"},
		{"verification just below 80", 80, 79.9, "CONDITIONAL APPROVAL"},
		{"both at 60", 60, 60, "CONDITIONAL APPROVAL"},
		{"risk below 60", 59.9, 100, "REJECTED"},
		{"verification below 60", 100, 59.9, "REJECTED"},
		{"both at 59", 59, 59, "REJECTED"},
		{"perfect", 100, 100, "APPROVED"},
		{"zero", 0, 0, "REJECTED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Decide(ctx, tt.risk, tt.verification)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewEngineRejectsInvalidPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package loan_policy\n\ndecision = {")
	assert.Error(t, err)
}

func TestCustomPolicyOverride(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, `
package loan_policy

default decision = "REJECTED"

decision = "APPROVED" {
	input.risk_score >= 50
}
`)
	require.NoError(t, err)

	got, err := engine.Decide(ctx, 55, 0)
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", got)
}
