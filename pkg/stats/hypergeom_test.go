package stats

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComb(t *testing.T) {
	assert.Equal(t, int64(10), CombInt(5, 2))
	assert.Equal(t, int64(1), CombInt(0, 0))
	assert.Equal(t, int64(1), CombInt(10, 0))
	assert.Equal(t, int64(1), CombInt(10, 10))
	assert.Equal(t, int64(118264581564861424), CombInt(60, 30))

	for _, c := range [][2]int{{3, 4}, {-1, 0}, {5, -1}, {-3, -5}, {0, 1}} {
		assert.Zero(t, Comb(c[0], c[1]).Sign(), "comb(%d, %d)", c[0], c[1])
	}
}

func TestCombSymmetry(t *testing.T) {
	for N := 0; N <= 40; N++ {
		for k := 0; k <= N; k++ {
			require.Zero(t, Comb(N, k).Cmp(Comb(N, N-k)), "comb(%d, %d)", N, k)
		}
	}
}

func TestCombExact(t *testing.T) {
	// 200 choose 100 is far beyond int64.
	c := Comb(200, 100)
	assert.Equal(t, "90548514656103281165404177077484163874504589675413336841320", c.String())
}

func TestProbKnownValues(t *testing.T) {
	p, err := Prob(4, 10, 5, 50)
	require.NoError(t, err)
	assert.InDelta(t, 0.003964583058, p, 1e-12)

	p, err = Prob(5, 10, 5, 50)
	require.NoError(t, err)
	assert.InDelta(t, 0.000118937492, p, 1e-12)

	p, err = Prob(6, 10, 5, 50)
	require.NoError(t, err)
	assert.Zero(t, p)
}

func TestProbIsDistribution(t *testing.T) {
	N, n := 20, 7
	for K := 0; K <= N; K++ {
		sum := 0.0
		for k := 0; k <= n; k++ {
			p, err := Prob(k, n, K, N)
			require.NoError(t, err)
			require.GreaterOrEqual(t, p, 0.0)
			require.LessOrEqual(t, p, 1.0)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-12, "K=%d", K)
	}
}

func TestProbLargePopulation(t *testing.T) {
	p, err := Prob(500, 1000, 1000, 2000)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(p))
	assert.Greater(t, p, 0.0)
	assert.Less(t, p, 1.0)
}

func TestProbInvalidDraws(t *testing.T) {
	_, err := Prob(0, 5, 0, 3)
	assert.True(t, errors.Is(err, ErrInvalidDraws))
	_, err = Prob(0, -1, 0, 3)
	assert.True(t, errors.Is(err, ErrInvalidDraws))
	_, err = ProbK(0, 5, 3)
	assert.True(t, errors.Is(err, ErrInvalidDraws))
	_, err = ProbKGivenS(0, 5, 3, DefaultThreshold)
	assert.True(t, errors.Is(err, ErrInvalidDraws))
	_, err = ProbSGivenK(0, 5, 3, DefaultThreshold)
	assert.True(t, errors.Is(err, ErrInvalidDraws))
}

func TestProbKUnnormalized(t *testing.T) {
	// Every population is consistent with zero draws, each with probability 1.
	p, err := ProbK(0, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 11.0, p)

	p, err = ProbK(10, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p)
}

func TestProbKGivenS(t *testing.T) {
	p, err := ProbKGivenS(0, 0, 10, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 6.0, p)

	// S is never below the observed successes.
	p, err = ProbKGivenS(3, 3, 10, 0.0)
	require.NoError(t, err)
	total, err := ProbK(3, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, total, p)

	p, err = ProbKGivenS(2, 10, 20, 0.9)
	require.NoError(t, err)
	assert.Zero(t, p)
}

func TestProbSGivenK(t *testing.T) {
	// Weights are proportional to comb(K, 10) for K in [10, 20]; they add up to comb(21, 11).
	p, err := ProbSGivenK(10, 10, 20, 0.9)
	require.NoError(t, err)
	assert.InDelta(t, 320892.0/352716.0, p, 1e-12)

	p, err = ProbSGivenK(10, 10, 20, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p)
}

func TestProbSGivenKMonotone(t *testing.T) {
	cases := [][3]int{{10, 10, 10}, {10, 10, 20}, {7, 10, 30}, {0, 5, 12}, {18, 20, 100}}
	for _, c := range cases {
		t.Run(fmt.Sprintf("k=%d,n=%d,N=%d", c[0], c[1], c[2]), func(t *testing.T) {
			prev := math.Inf(1)
			for _, s := range []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 0.95, 0.99, 1} {
				p, err := ProbSGivenK(c[0], c[1], c[2], s)
				require.NoError(t, err)
				require.GreaterOrEqual(t, p, 0.0)
				require.LessOrEqual(t, p, 1.0+1e-12)
				require.LessOrEqual(t, p, prev+1e-12, "s=%v", s)
				prev = p
			}
		})
	}
}

func TestProbSGivenKUnattainable(t *testing.T) {
	_, err := ProbSGivenK(5, 3, 10, DefaultThreshold)
	assert.True(t, errors.Is(err, ErrUnattainable))
}

func TestIdempotent(t *testing.T) {
	a, err := ProbSGivenK(13, 15, 40, 0.8)
	require.NoError(t, err)
	b, err := ProbSGivenK(13, 15, 40, 0.8)
	require.NoError(t, err)
	assert.Equal(t, math.Float64bits(a), math.Float64bits(b))

	s1, err := MinSuccessFraction(13, 15, 40, DefaultConfidence, DefaultAccuracy)
	require.NoError(t, err)
	s2, err := MinSuccessFraction(13, 15, 40, DefaultConfidence, DefaultAccuracy)
	require.NoError(t, err)
	assert.Equal(t, math.Float64bits(s1), math.Float64bits(s2))
}
