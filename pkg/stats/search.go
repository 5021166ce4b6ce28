package stats

import "github.com/pkg/errors"

// MinSuccessFraction returns a lower bound on the success fraction of a
// population of size N, given k successful draws in n tests.
//
// It searches downward from 1-accuracy in steps of accuracy for the largest s
// with ProbKGivenS(k, n, N, s)/ProbK(k, n, N) > confidence, and returns 0 when
// no s above 0 qualifies. For finite N the bound is a step function of s, so a
// reasonable accuracy is of order 1/N.
func MinSuccessFraction(k, n, N int, confidence, accuracy float64) (float64, error) {
	if accuracy <= 0 {
		return 0, errors.Wrapf(ErrInvalidAccuracy, "accuracy=%g", accuracy)
	}
	if err := checkDraws(n, N); err != nil {
		return 0, err
	}
	t := newTerms(k, n, N)
	pK := t.total()
	if pK == 0 {
		return 0, errors.Wrapf(ErrUnattainable, "k=%d n=%d N=%d", k, n, N)
	}
	s := 1 - accuracy
	for s > 0 {
		if t.givenS(s)/pK > confidence {
			return s, nil
		}
		s -= accuracy
	}
	return 0, nil
}

// MinTestLength returns the minimum number of tests n, all successful, needed
// before the lower bound on the success fraction of a population of size N
// reaches sLimit. It returns -1 when N is too small to get there before the
// whole population has been tested.
//
// Each step runs a full MinSuccessFraction scan, so the cost grows as
// N²/accuracy; cache results for large N.
func MinTestLength(N int, sLimit, confidence, accuracy float64) (int, error) {
	if N <= 1 {
		return -1, nil
	}
	if accuracy <= 0 {
		return 0, errors.Wrapf(ErrInvalidAccuracy, "accuracy=%g", accuracy)
	}
	for n := 1; n < N; n++ {
		s, err := MinSuccessFraction(n, n, N, confidence, accuracy)
		if err != nil {
			return 0, err
		}
		if s >= sLimit {
			return n, nil
		}
	}
	return -1, nil
}
