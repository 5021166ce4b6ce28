package decision

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func input(N, n, k int, sLimit float64) Input {
	return Input{
		Population: N, Draws: n, Successes: k,
		SuccessLimit: sLimit, Confidence: 0.95, Accuracy: 0.01, Z: 1.959964,
	}
}

func TestEvaluatePaths(t *testing.T) {
	cases := []struct {
		name      string
		in        Input
		action    Action
		reason    string
		remaining int
	}{
		{"untested", input(20, 0, 0, 0.9), ActionContinue, "more_tests_needed", 15},
		{"untested N=19", input(19, 0, 0, 0.95), ActionContinue, "more_tests_needed", 18},
		{"untested N=999", input(999, 0, 0, 0.95), ActionContinue, "more_tests_needed", 56},
		{"halfway", input(20, 10, 10, 0.9), ActionContinue, "more_tests_needed", 5},
		{"certified", input(20, 19, 19, 0.9), ActionCertify, "lower_bound_reached", 0},
		{"rejected", input(20, 10, 2, 0.9), ActionReject, "below_limit", 0},
		{"failures", input(100, 20, 19, 0.9), ActionContinue, "failures_observed", 0},
		{"too small", input(3, 1, 1, 0.999), ActionExhaust, "population_too_small", 0},
		{"all tested", input(5, 5, 5, 1.0), ActionExhaust, "population_tested", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := Evaluate(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.action, d.Action)
			assert.Equal(t, tc.reason, d.Reason)
			assert.Equal(t, tc.remaining, d.RemainingTests)
			assert.GreaterOrEqual(t, d.Posterior, 0.0)
			assert.LessOrEqual(t, d.Posterior, 1.0)
		})
	}
}

func TestEvaluateReportsBounds(t *testing.T) {
	d, err := Evaluate(input(20, 10, 10, 0.9))
	require.NoError(t, err)
	assert.InDelta(t, 0.85, d.LowerBound, 1e-9)
	assert.InDelta(t, 0.9098, d.Posterior, 1e-4)
	assert.Greater(t, d.WilsonLB, 0.0)
	assert.Less(t, d.WilsonLB, d.LowerBound)
}

func TestEvaluateUntestedAtRejectionEdge(t *testing.T) {
	// With no draws the posterior is (N-ceil(s*N)+1)/(N+1), exactly 0.05 here.
	for _, N := range []int{19, 39, 59} {
		in := input(N, 0, 0, 0.95)
		in.TestLength = func(int) (int, error) { return N - 1, nil }
		d, err := Evaluate(in)
		require.NoError(t, err)
		assert.Equal(t, ActionContinue, d.Action, "N=%d", N)
		assert.InDelta(t, 0.05, d.Posterior, 1e-12, "N=%d", N)
	}
}

func TestEvaluateUsesTestLength(t *testing.T) {
	calls := 0
	in := input(20, 10, 10, 0.9)
	in.TestLength = func(N int) (int, error) {
		calls++
		assert.Equal(t, 20, N)
		return 12, nil
	}
	d, err := Evaluate(in)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, d.RemainingTests)

	boom := errors.New("boom")
	in.TestLength = func(int) (int, error) { return 0, boom }
	_, err = Evaluate(in)
	assert.ErrorIs(t, err, boom)
}

func TestEvaluateInvalid(t *testing.T) {
	_, err := Evaluate(input(5, 6, 6, 0.9))
	assert.Error(t, err)
}
