package stats

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BoundQuery is one MinSuccessFraction evaluation.
type BoundQuery struct {
	Successes  int     `json:"k"`
	Draws      int     `json:"n"`
	Population int     `json:"N"`
	Confidence float64 `json:"confidence,omitempty"`
	Accuracy   float64 `json:"accuracy,omitempty"`
}

type BoundResult struct {
	BoundQuery
	LowerBound float64 `json:"lower_bound"`
	Err        string  `json:"err,omitempty"`
}

// WithDefaults fills a zero confidence or accuracy.
func (q BoundQuery) WithDefaults(confidence, accuracy float64) BoundQuery {
	if q.Confidence == 0 {
		q.Confidence = confidence
	}
	if q.Accuracy == 0 {
		q.Accuracy = accuracy
	}
	return q
}

// EvaluateBounds runs the queries on at most limit goroutines and returns the
// results in input order. A query that fails carries its error in Err; only
// cancellation of ctx makes EvaluateBounds itself fail.
func EvaluateBounds(ctx context.Context, queries []BoundQuery, limit int) ([]BoundResult, error) {
	out := make([]BoundResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, q := range queries {
		i, q := i, q
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			lb, err := MinSuccessFraction(q.Successes, q.Draws, q.Population, q.Confidence, q.Accuracy)
			out[i] = BoundResult{BoundQuery: q, LowerBound: lb}
			if err != nil {
				out[i].Err = err.Error()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
