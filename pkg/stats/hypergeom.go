package stats

import (
	"math"
	"math/big"

	"github.com/pkg/errors"
)

const (
	DefaultThreshold    = 0.9
	DefaultConfidence   = 0.95
	DefaultAccuracy     = 0.01
	DefaultSuccessLimit = 0.95
)

var (
	// ErrInvalidDraws is returned when the number of draws n lies outside
	// [0, N], which leaves comb(N, n) at zero.
	ErrInvalidDraws = errors.New("draws outside population")

	// ErrUnattainable is returned when no population success count K can
	// produce the observation.
	ErrUnattainable = errors.New("observation unattainable")

	ErrInvalidAccuracy = errors.New("accuracy must be positive")
)

// Comb returns the number of combinations of N things taken k at a time.
// It returns 0 if k > N, N < 0 or k < 0.
func Comb(N, k int) *big.Int {
	if k > N || N < 0 || k < 0 {
		return new(big.Int)
	}
	val := big.NewInt(1)
	var num, den big.Int
	for j := 0; j < min(k, N-k); j++ {
		val.Mul(val, num.SetInt64(int64(N-j)))
		val.Quo(val, den.SetInt64(int64(j+1)))
	}
	return val
}

// CombInt is Comb for callers that know the result fits in an int64.
func CombInt(N, k int) int64 {
	return Comb(N, k).Int64()
}

func toFloat(x *big.Int) float64 {
	f, _ := new(big.Float).SetInt(x).Float64()
	return f
}

func checkDraws(n, N int) error {
	if n < 0 || n > N {
		return errors.Wrapf(ErrInvalidDraws, "n=%d N=%d", n, N)
	}
	return nil
}

// Prob is the hypergeometric probability of k successful draws in n tests of
// a population of size N holding K successes.
func Prob(k, n, K, N int) (float64, error) {
	if err := checkDraws(n, N); err != nil {
		return 0, err
	}
	return prob(k, n, K, N), nil
}

func prob(k, n, K, N int) float64 {
	num := new(big.Int).Mul(Comb(K, k), Comb(N-K, n-k))
	den := Comb(N, n)
	fn, fd := toFloat(num), toFloat(den)
	if !math.IsInf(fd, 0) && !math.IsInf(fn, 0) {
		return fn / fd
	}
	// Counts beyond float64 range: divide at arbitrary precision instead.
	q, _ := new(big.Float).Quo(new(big.Float).SetInt(num), new(big.Float).SetInt(den)).Float64()
	return q
}

// terms holds prob(k, n, K, N) for every K in [k, N-(n-k)], ascending.
type terms struct {
	k, N   int
	values []float64
}

func newTerms(k, n, N int) terms {
	t := terms{k: k, N: N}
	for K := k; K < N-(n-k)+1; K++ {
		t.values = append(t.values, prob(k, n, K, N))
	}
	return t
}

// from sums the terms with K >= S in ascending K.
func (t terms) from(S int) float64 {
	p := 0.0
	for i := max(S-t.k, 0); i < len(t.values); i++ {
		p += t.values[i]
	}
	return p
}

func (t terms) total() float64 { return t.from(t.k) }

func (t terms) givenS(s float64) float64 {
	return t.from(max(t.k, int(math.Ceil(s*float64(t.N)))))
}

// ProbK adds up Prob(k, n, K, N) over every K consistent with the draws.
// The result is not normalized to unity.
func ProbK(k, n, N int) (float64, error) {
	if err := checkDraws(n, N); err != nil {
		return 0, err
	}
	return newTerms(k, n, N).total(), nil
}

// ProbKGivenS adds up Prob(k, n, K, N) over every K consistent with the draws
// and with a success rate K/N >= s. The result is not normalized to unity.
func ProbKGivenS(k, n, N int, s float64) (float64, error) {
	if err := checkDraws(n, N); err != nil {
		return 0, err
	}
	return newTerms(k, n, N).givenS(s), nil
}

// ProbSGivenK is the probability that the population success rate is at least
// s, given k successful draws in n tests, under a uniform prior over K.
func ProbSGivenK(k, n, N int, s float64) (float64, error) {
	if err := checkDraws(n, N); err != nil {
		return 0, err
	}
	t := newTerms(k, n, N)
	pK := t.total()
	if pK == 0 {
		return 0, errors.Wrapf(ErrUnattainable, "k=%d n=%d N=%d", k, n, N)
	}
	return t.givenS(s) / pK, nil
}
