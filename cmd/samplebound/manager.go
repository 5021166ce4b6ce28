package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/yasi-python/samplebound/internal/outcomes"
	"github.com/yasi-python/samplebound/pkg/api"
	"github.com/yasi-python/samplebound/pkg/audit"
	"github.com/yasi-python/samplebound/pkg/config"
	"github.com/yasi-python/samplebound/pkg/decision"
	"github.com/yasi-python/samplebound/pkg/logger"
	"github.com/yasi-python/samplebound/pkg/metrics"
	"github.com/yasi-python/samplebound/pkg/stats"
	"github.com/yasi-python/samplebound/pkg/storage"
)

// Manager serves campaign operations over the bolt store.
type Manager struct {
	cfg *config.Config
	log *logger.Logger
	db  *storage.DB
	now func() time.Time

	// serializes draw recording with the status update that follows it
	mu sync.Mutex
}

var _ api.Service = (*Manager)(nil)

func NewManager(cfg *config.Config, log *logger.Logger, db *storage.DB) *Manager {
	return &Manager{cfg: cfg, log: log, db: db, now: time.Now}
}

// SeedCampaigns creates the campaigns listed in the config that do not exist yet.
func (m *Manager) SeedCampaigns() error {
	for _, c := range m.cfg.Campaigns {
		err := m.db.CreateCampaign(storage.Campaign{ID: c.ID, Name: c.Name, Population: c.Population})
		switch {
		case errors.Is(err, storage.ErrCampaignExists):
			m.log.Debug("campaign_exists", "id", c.ID)
		case err != nil:
			return err
		default:
			m.log.Info("campaign_seeded", "id", c.ID, "population", c.Population)
		}
	}
	return nil
}

func (m *Manager) ListCampaigns() ([]storage.Campaign, error) { return m.db.ListCampaigns() }

func (m *Manager) Campaign(id string) (*storage.Campaign, error) { return m.db.GetCampaign(id) }

func (m *Manager) CreateCampaign(id, name string, population int) (*storage.Campaign, error) {
	if id == "" || population <= 0 {
		return nil, errors.Wrap(api.ErrBadRequest, "campaign needs an id and a positive population")
	}
	if limit := m.cfg.Service.MaxPopulation; limit > 0 && population > limit {
		return nil, errors.Wrapf(api.ErrBadRequest, "population %d above max_population %d", population, limit)
	}
	c := storage.Campaign{ID: id, Name: name, Population: population, Status: storage.StatusOpen}
	if err := m.db.CreateCampaign(c); err != nil {
		return nil, err
	}
	m.log.Info("campaign_created", "id", id, "population", population)
	return &c, nil
}

func (m *Manager) RecordDraws(id string, results []bool) (*storage.Campaign, decision.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.db.RecordDraws(id, results)
	if err != nil {
		return nil, decision.Decision{}, err
	}
	k := outcomes.Count(results)
	metrics.Draws.WithLabelValues(metrics.DrawResult(true)).Add(float64(k))
	metrics.Draws.WithLabelValues(metrics.DrawResult(false)).Add(float64(len(results) - k))
	m.log.Debug("draws_recorded", "id", id, "count", len(results), "successes", k)
	d, err := m.apply(c)
	if err != nil {
		return nil, decision.Decision{}, err
	}
	return c, d, nil
}

func (m *Manager) ImportText(id, text string) (*storage.Campaign, decision.Decision, error) {
	res, err := outcomes.Parse(text)
	if err != nil {
		return nil, decision.Decision{}, errors.Wrap(api.ErrBadRequest, err.Error())
	}
	if len(res) == 0 {
		return nil, decision.Decision{}, errors.Wrap(api.ErrBadRequest, "no outcomes")
	}
	return m.RecordDraws(id, res)
}

// Import fetches an outcome log from a URL or file and records it.
func (m *Manager) Import(ctx context.Context, id, src string) (*storage.Campaign, decision.Decision, error) {
	txt, err := outcomes.ForSource(src).Fetch(ctx, src)
	if err != nil {
		m.log.Warn("fetch_failed", "src", src, "err", err.Error())
		return nil, decision.Decision{}, err
	}
	return m.ImportText(id, txt)
}

func (m *Manager) Evaluate(id string) (decision.Decision, error) {
	c, err := m.db.GetCampaign(id)
	if err != nil {
		return decision.Decision{}, err
	}
	return m.decide(*c)
}

// TestLength is MinTestLength backed by the result cache.
func (m *Manager) TestLength(population int, sLimit, confidence, accuracy float64) (int, error) {
	key := storage.TestLengthKey(population, sLimit, confidence, accuracy)
	if n, found, err := m.db.GetCachedTestLength(key); err == nil && found {
		metrics.CacheRequests.WithLabelValues("hit").Inc()
		return n, nil
	}
	metrics.CacheRequests.WithLabelValues("miss").Inc()
	start := time.Now()
	n, err := stats.MinTestLength(population, sLimit, confidence, accuracy)
	if err != nil {
		return 0, err
	}
	metrics.Observe("test_length", start)
	m.log.Debug("test_length_computed", "population", population, "s_limit", sLimit,
		"value", n, "elapsed_ms", time.Since(start).Milliseconds())
	if err := m.db.PutCachedTestLength(key, n); err != nil {
		m.log.Warn("cache_put_failed", "key", key, "err", err.Error())
	}
	return n, nil
}

func (m *Manager) decide(c storage.Campaign) (decision.Decision, error) {
	b := m.cfg.Bounds
	defer metrics.Observe("decision", time.Now())
	return decision.Evaluate(decision.Input{
		Population:   c.Population,
		Draws:        c.Draws,
		Successes:    c.Successes,
		SuccessLimit: b.SuccessLimit,
		Confidence:   b.Confidence,
		Accuracy:     b.Accuracy,
		Z:            b.WilsonZ,
		TestLength: func(N int) (int, error) {
			return m.TestLength(N, b.SuccessLimit, b.Confidence, b.Accuracy)
		},
	})
}

// apply evaluates c and stores the resulting status. c is updated in place.
func (m *Manager) apply(c *storage.Campaign) (decision.Decision, error) {
	d, err := m.decide(*c)
	if err != nil {
		return d, err
	}
	prev := c.Status
	c.LowerBound = d.LowerBound
	switch d.Action {
	case decision.ActionCertify:
		c.Status = storage.StatusCertified
	case decision.ActionReject:
		c.Status = storage.StatusRejected
	case decision.ActionExhaust:
		c.Status = storage.StatusExhausted
	default:
		c.Status = storage.StatusOpen
	}
	if c.Status == storage.StatusCertified && prev != storage.StatusCertified {
		now := m.now()
		offs, _ := m.cfg.AuditOffsets()
		c.CertifiedUnix = now.Unix()
		c.NextAudits = audit.Unix(audit.BuildSchedule(now, offs))
		metrics.Certifications.Inc()
		m.log.Info("campaign_certified", "id", c.ID, "lower_bound", fmt.Sprintf("%.4f", d.LowerBound),
			"draws", c.Draws, "population", c.Population)
		if _, err := m.db.SnapshotCampaign(*c, m.cfg.Service.SnapshotsDir); err != nil {
			m.log.Warn("snapshot_failed", "id", c.ID, "err", err.Error())
		}
	}
	if c.Status == storage.StatusRejected && prev != storage.StatusRejected {
		m.log.Warn("campaign_rejected", "id", c.ID, "posterior", fmt.Sprintf("%.6f", d.Posterior))
	}
	if err := m.db.PutCampaign(*c); err != nil {
		return d, err
	}
	return d, nil
}

// auditDue logs certified campaigns whose re-audit time has passed and drops
// those entries from their schedule.
func (m *Manager) auditDue(now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, err := m.db.ListCampaigns()
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, c := range cs {
		due := audit.Due(c.NextAudits, now)
		if len(due) == 0 {
			continue
		}
		ids = append(ids, c.ID)
		c.NextAudits = c.NextAudits[len(due):]
		m.log.Warn("audit_due", "id", c.ID, "certified_unix", c.CertifiedUnix, "remaining_audits", len(c.NextAudits))
		if err := m.db.PutCampaign(c); err != nil {
			return ids, err
		}
	}
	return ids, nil
}

func (m *Manager) backgroundLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := m.auditDue(now); err != nil {
				m.log.Error("audit_scan_failed", "err", err.Error())
			}
		}
	}
}
