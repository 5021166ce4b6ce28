package decision

import (
	"github.com/yasi-python/samplebound/pkg/stats"
)

type Input struct {
	Population   int
	Draws        int
	Successes    int
	SuccessLimit float64
	Confidence   float64
	Accuracy     float64
	Z            float64
	// TestLength returns MinTestLength for the population; nil computes it directly.
	TestLength func(population int) (int, error)
}

type Action string

const (
	ActionCertify  Action = "certify"
	ActionContinue Action = "continue"
	ActionReject   Action = "reject"
	ActionExhaust  Action = "exhausted"
)

type Decision struct {
	Action         Action  `json:"action"`
	Reason         string  `json:"reason"`
	LowerBound     float64 `json:"lower_bound"`
	WilsonLB       float64 `json:"wilson_lb"`
	Posterior      float64 `json:"posterior"`
	RemainingTests int     `json:"remaining_tests"`
}

// Evaluate decides whether the draws so far certify that the population
// success rate is at least SuccessLimit. A campaign is only rejected once it
// has at least one draw.
func Evaluate(in Input) (Decision, error) {
	k, n, N := in.Successes, in.Draws, in.Population
	lb, err := stats.MinSuccessFraction(k, n, N, in.Confidence, in.Accuracy)
	if err != nil {
		return Decision{}, err
	}
	post, err := stats.ProbSGivenK(k, n, N, in.SuccessLimit)
	if err != nil {
		return Decision{}, err
	}
	d := Decision{LowerBound: lb, WilsonLB: stats.WilsonLowerBound(k, n, in.Z), Posterior: post}

	switch {
	case lb >= in.SuccessLimit:
		d.Action, d.Reason = ActionCertify, "lower_bound_reached"
		return d, nil
	case n > 0 && post < 1-in.Confidence:
		d.Action, d.Reason = ActionReject, "below_limit"
		return d, nil
	case n >= N:
		d.Action, d.Reason = ActionExhaust, "population_tested"
		return d, nil
	case k < n:
		d.Action, d.Reason = ActionContinue, "failures_observed"
		return d, nil
	}

	testLength := in.TestLength
	if testLength == nil {
		testLength = func(N int) (int, error) {
			return stats.MinTestLength(N, in.SuccessLimit, in.Confidence, in.Accuracy)
		}
	}
	needed, err := testLength(N)
	if err != nil {
		return Decision{}, err
	}
	if needed < 0 {
		d.Action, d.Reason = ActionExhaust, "population_too_small"
		return d, nil
	}
	d.Action, d.Reason = ActionContinue, "more_tests_needed"
	d.RemainingTests = max(needed-n, 1)
	return d, nil
}
