package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yasi-python/samplebound/internal/outcomes"
	"github.com/yasi-python/samplebound/pkg/config"
	"github.com/yasi-python/samplebound/pkg/decision"
	"github.com/yasi-python/samplebound/pkg/metrics"
	"github.com/yasi-python/samplebound/pkg/stats"
	"github.com/yasi-python/samplebound/pkg/storage"
)

// Service is the stateful part of the API, backed by campaign storage.
type Service interface {
	ListCampaigns() ([]storage.Campaign, error)
	CreateCampaign(id, name string, population int) (*storage.Campaign, error)
	Campaign(id string) (*storage.Campaign, error)
	RecordDraws(id string, outcomes []bool) (*storage.Campaign, decision.Decision, error)
	ImportText(id, text string) (*storage.Campaign, decision.Decision, error)
	Evaluate(id string) (decision.Decision, error)
	TestLength(population int, sLimit, confidence, accuracy float64) (int, error)
}

type Server struct {
	Svc           Service
	Bounds        config.BoundsCfg
	Concurrency   int
	MaxPopulation int
	MetricsPath   string
	HealthzPath   string
}

func New(svc Service, cfg *config.Config) *Server {
	return &Server{
		Svc:           svc,
		Bounds:        cfg.Bounds,
		Concurrency:   cfg.Service.Concurrency,
		MaxPopulation: cfg.Service.MaxPopulation,
		MetricsPath:   cfg.Service.MetricsPath,
		HealthzPath:   cfg.Service.HealthzPath,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.HealthzPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle(s.MetricsPath, promhttp.Handler())

	mux.HandleFunc("/api/v1/comb", s.wrap(http.MethodGet, s.handleComb))
	mux.HandleFunc("/api/v1/prob", s.wrap(http.MethodGet, s.handleProb))
	mux.HandleFunc("/api/v1/prob-k", s.wrap(http.MethodGet, s.handleProbK))
	mux.HandleFunc("/api/v1/prob-k-given-s", s.wrap(http.MethodGet, s.handleProbKGivenS))
	mux.HandleFunc("/api/v1/posterior", s.wrap(http.MethodGet, s.handlePosterior))
	mux.HandleFunc("/api/v1/bound", s.wrap(http.MethodGet, s.handleBound))
	mux.HandleFunc("/api/v1/bounds", s.wrap(http.MethodPost, s.handleBounds))
	mux.HandleFunc("/api/v1/test-length", s.wrap(http.MethodGet, s.handleTestLength))

	mux.HandleFunc("/api/v1/campaigns", s.wrap("", s.handleCampaigns))
	mux.HandleFunc("/api/v1/campaign", s.wrap(http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
		c, err := s.Svc.Campaign(r.URL.Query().Get("id"))
		if err != nil {
			sendErr(w, err)
			return
		}
		sendJSON(w, 200, c)
	}))
	mux.HandleFunc("/api/v1/draw", s.wrap(http.MethodPost, s.handleDraw))
	mux.HandleFunc("/api/v1/import", s.wrap(http.MethodPost, s.handleImport))
	mux.HandleFunc("/api/v1/evaluate", s.wrap(http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
		d, err := s.Svc.Evaluate(r.URL.Query().Get("id"))
		if err != nil {
			sendErr(w, err)
			return
		}
		sendJSON(w, 200, d)
	}))
	return mux
}

func (s *Server) wrap(method string, h func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if method != "" && r.Method != method {
			sendJSON(w, http.StatusMethodNotAllowed, errMsg("method_not_allowed"))
			return
		}
		metrics.RequestsInFlight.Inc()
		defer metrics.RequestsInFlight.Dec()
		h(w, r)
	}
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}

func (s *Server) handleComb(w http.ResponseWriter, r *http.Request) {
	p := params{r: r, maxN: s.MaxPopulation}
	N, k := p.population("N"), p.intArg("k")
	if p.err != nil {
		sendJSON(w, 400, errMsg(p.err.Error()))
		return
	}
	defer metrics.Observe("comb", time.Now())
	sendJSON(w, 200, map[string]any{"N": N, "k": k, "value": stats.Comb(N, k).String()})
}

func (s *Server) handleProb(w http.ResponseWriter, r *http.Request) {
	p := params{r: r, maxN: s.MaxPopulation}
	k, n, K, N := p.intArg("k"), p.intArg("n"), p.intArg("K"), p.population("N")
	if p.err != nil {
		sendJSON(w, 400, errMsg(p.err.Error()))
		return
	}
	defer metrics.Observe("prob", time.Now())
	v, err := stats.Prob(k, n, K, N)
	sendValue(w, v, err)
}

func (s *Server) handleProbK(w http.ResponseWriter, r *http.Request) {
	p := params{r: r, maxN: s.MaxPopulation}
	k, n, N := p.intArg("k"), p.intArg("n"), p.population("N")
	if p.err != nil {
		sendJSON(w, 400, errMsg(p.err.Error()))
		return
	}
	defer metrics.Observe("prob_k", time.Now())
	v, err := stats.ProbK(k, n, N)
	sendValue(w, v, err)
}

func (s *Server) handleProbKGivenS(w http.ResponseWriter, r *http.Request) {
	p := params{r: r, maxN: s.MaxPopulation}
	k, n, N, th := p.intArg("k"), p.intArg("n"), p.population("N"), p.floatArg("s", s.Bounds.Threshold)
	if p.err != nil {
		sendJSON(w, 400, errMsg(p.err.Error()))
		return
	}
	defer metrics.Observe("prob_k_given_s", time.Now())
	v, err := stats.ProbKGivenS(k, n, N, th)
	sendValue(w, v, err)
}

func (s *Server) handlePosterior(w http.ResponseWriter, r *http.Request) {
	p := params{r: r, maxN: s.MaxPopulation}
	k, n, N, th := p.intArg("k"), p.intArg("n"), p.population("N"), p.floatArg("s", s.Bounds.Threshold)
	if p.err != nil {
		sendJSON(w, 400, errMsg(p.err.Error()))
		return
	}
	defer metrics.Observe("posterior", time.Now())
	v, err := stats.ProbSGivenK(k, n, N, th)
	sendValue(w, v, err)
}

func (s *Server) handleBound(w http.ResponseWriter, r *http.Request) {
	p := params{r: r, maxN: s.MaxPopulation}
	k, n, N := p.intArg("k"), p.intArg("n"), p.population("N")
	conf, acc := p.floatArg("confidence", s.Bounds.Confidence), p.floatArg("accuracy", s.Bounds.Accuracy)
	if p.err != nil {
		sendJSON(w, 400, errMsg(p.err.Error()))
		return
	}
	defer metrics.Observe("bound", time.Now())
	lb, err := stats.MinSuccessFraction(k, n, N, conf, acc)
	if err != nil {
		sendErr(w, err)
		return
	}
	sendJSON(w, 200, map[string]any{
		"lower_bound": lb,
		"wilson_lb":   stats.WilsonLowerBound(k, n, s.Bounds.WilsonZ),
		"confidence":  conf,
		"accuracy":    acc,
	})
}

func (s *Server) handleBounds(w http.ResponseWriter, r *http.Request) {
	var qs []stats.BoundQuery
	if err := json.NewDecoder(r.Body).Decode(&qs); err != nil {
		sendJSON(w, 400, errMsg("bad_json"))
		return
	}
	for i := range qs {
		if s.MaxPopulation > 0 && qs[i].Population > s.MaxPopulation {
			sendJSON(w, 400, errMsg("N above max_population"))
			return
		}
		qs[i] = qs[i].WithDefaults(s.Bounds.Confidence, s.Bounds.Accuracy)
	}
	defer metrics.Observe("bounds", time.Now())
	res, err := stats.EvaluateBounds(r.Context(), qs, s.Concurrency)
	if err != nil {
		sendErr(w, err)
		return
	}
	sendJSON(w, 200, res)
}

func (s *Server) handleTestLength(w http.ResponseWriter, r *http.Request) {
	p := params{r: r, maxN: s.MaxPopulation}
	N := p.population("N")
	sl := p.floatArg("s_limit", s.Bounds.SuccessLimit)
	conf, acc := p.floatArg("confidence", s.Bounds.Confidence), p.floatArg("accuracy", s.Bounds.Accuracy)
	if p.err != nil {
		sendJSON(w, 400, errMsg(p.err.Error()))
		return
	}
	n, err := s.Svc.TestLength(N, sl, conf, acc)
	if err != nil {
		sendErr(w, err)
		return
	}
	sendJSON(w, 200, map[string]any{"N": N, "s_limit": sl, "value": n})
}

func (s *Server) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cs, err := s.Svc.ListCampaigns()
		if err != nil {
			sendErr(w, err)
			return
		}
		sendJSON(w, 200, cs)
	case http.MethodPost:
		var req struct {
			ID         string `json:"id"`
			Name       string `json:"name"`
			Population int    `json:"population"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendJSON(w, 400, errMsg("bad_json"))
			return
		}
		if s.MaxPopulation > 0 && req.Population > s.MaxPopulation {
			sendJSON(w, 400, errMsg("population above max_population"))
			return
		}
		c, err := s.Svc.CreateCampaign(req.ID, req.Name, req.Population)
		if err != nil {
			sendErr(w, err)
			return
		}
		sendJSON(w, http.StatusCreated, c)
	default:
		sendJSON(w, http.StatusMethodNotAllowed, errMsg("method_not_allowed"))
	}
}

func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := q.Get("id")
	if id == "" {
		sendJSON(w, 400, errMsg("missing id"))
		return
	}
	ok, err := strconv.ParseBool(q.Get("success"))
	if err != nil {
		sendJSON(w, 400, errMsg("bad success"))
		return
	}
	c, d, err := s.Svc.RecordDraws(id, []bool{ok})
	if err != nil {
		sendErr(w, err)
		return
	}
	sendJSON(w, 200, map[string]any{"campaign": c, "decision": d})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		sendJSON(w, 400, errMsg("missing id"))
		return
	}
	body, err := outcomes.ReadLog(r.Body)
	if err != nil {
		sendErr(w, err)
		return
	}
	c, d, err := s.Svc.ImportText(id, body)
	if err != nil {
		sendErr(w, err)
		return
	}
	sendJSON(w, 200, map[string]any{"campaign": c, "decision": d})
}

type params struct {
	r    *http.Request
	maxN int
	err  error
}

// population reads a population size, rejecting values above maxN.
func (p *params) population(name string) int {
	N := p.intArg(name)
	if p.err == nil && p.maxN > 0 && N > p.maxN {
		p.err = errors.New(name + " above max_population")
	}
	return N
}

func (p *params) intArg(name string) int {
	v := p.r.URL.Query().Get(name)
	if p.err != nil {
		return 0
	}
	if v == "" {
		p.err = errors.New("missing " + name)
		return 0
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		p.err = errors.New("bad " + name)
	}
	return i
}

func (p *params) floatArg(name string, def float64) float64 {
	v := p.r.URL.Query().Get(name)
	if p.err != nil || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.err = errors.New("bad " + name)
	}
	return f
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrCampaignExists), errors.Is(err, storage.ErrPopulationExhausted):
		return http.StatusConflict
	case errors.Is(err, outcomes.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, stats.ErrInvalidDraws), errors.Is(err, stats.ErrUnattainable),
		errors.Is(err, stats.ErrInvalidAccuracy), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// ErrBadRequest marks Service errors caused by the request content.
var ErrBadRequest = errors.New("bad_request")

func sendErr(w http.ResponseWriter, err error) {
	sendJSON(w, statusFor(err), errMsg(err.Error()))
}

func sendValue(w http.ResponseWriter, v float64, err error) {
	if err != nil {
		sendErr(w, err)
		return
	}
	sendJSON(w, 200, map[string]any{"value": v})
}

func sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func errMsg(m string) map[string]any { return map[string]any{"ok": false, "error": m} }
