package telemetry

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ksattari/souschef/config"
)

// logInterval spaces the periodic summary lines when periodic_logs is on.
const logInterval = time.Minute

// Telemetry provides monitoring and cost tracking for pipeline runs.
type Telemetry struct {
	config config.TelemetryConfig
	logger *log.Logger

	mu    sync.RWMutex
	stats Stats

	costMu      sync.RWMutex
	totalCost   float64
	totalTokens int64
}

// Stats is a point-in-time copy of the in-memory counters.
type Stats struct {
	TotalRuns             int64
	SuccessfulRuns        int64
	FailedRuns            int64
	RetriedRuns           int64
	AverageProcessingTime time.Duration

	LLMCalls    map[string]int64 // stage -> calls
	LLMTokens   map[string]int64 // model -> tokens
	SearchCalls int64
}

var (
	promRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "souschef",
		Name:      "runs_total",
		Help:      "Pipeline runs by outcome.",
	}, []string{"outcome"})
	promStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "souschef",
		Name:      "stage_duration_seconds",
		Help:      "Duration of each pipeline stage.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})
	promLLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "souschef",
		Name:      "llm_calls_total",
		Help:      "LLM gateway calls by stage.",
	}, []string{"stage"})
	promSearchCalls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "souschef",
		Name:      "search_calls_total",
		Help:      "Web search gateway calls.",
	})
	promTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "souschef",
		Name:      "llm_tokens_total",
		Help:      "LLM tokens consumed by model.",
	}, []string{"model"})
	promCost = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "souschef",
		Name:      "llm_cost_dollars_total",
		Help:      "Estimated LLM spend in dollars.",
	})
)

// NewTelemetry creates a new telemetry instance. With periodic_logs enabled
// it emits a counter summary every minute, to log_file when one is set.
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	out := log.Writer()
	if cfg.LogFile != "" {
		if f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			out = f
		} else {
			log.Printf("[TELEMETRY] cannot open %s, logging to default writer: %v", cfg.LogFile, err)
		}
	}
	t := &Telemetry{
		config: cfg,
		logger: log.New(out, "[TELEMETRY] ", log.LstdFlags),
		stats: Stats{
			LLMCalls:  make(map[string]int64),
			LLMTokens: make(map[string]int64),
		},
	}
	if cfg.Enabled && cfg.PeriodicLogs {
		go t.logLoop()
	}
	return t
}

// RecordRun records the outcome of one full pipeline run.
func (t *Telemetry) RecordRun(duration time.Duration, retried bool, err error) {
	if !t.config.Enabled {
		return
	}
	t.mu.Lock()
	t.stats.TotalRuns++
	if err != nil {
		t.stats.FailedRuns++
	} else {
		t.stats.SuccessfulRuns++
	}
	if retried {
		t.stats.RetriedRuns++
	}
	n := t.stats.TotalRuns
	t.stats.AverageProcessingTime = time.Duration(
		(int64(t.stats.AverageProcessingTime)*(n-1) + int64(duration)) / n)
	t.mu.Unlock()

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	promRuns.WithLabelValues(outcome).Inc()
}

// RecordStage records the duration of a single pipeline stage.
func (t *Telemetry) RecordStage(stage string, duration time.Duration) {
	if !t.config.Enabled {
		return
	}
	promStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordLLMCall records one LLM gateway call and its token usage. Failed
// calls count too, the call still happened.
func (t *Telemetry) RecordLLMCall(stage, model string, tokens int, cost float64) {
	if !t.config.Enabled {
		return
	}
	t.mu.Lock()
	t.stats.LLMCalls[stage]++
	t.stats.LLMTokens[model] += int64(tokens)
	t.mu.Unlock()

	promLLMCalls.WithLabelValues(stage).Inc()
	promTokens.WithLabelValues(model).Add(float64(tokens))

	if t.config.CostTracking {
		t.costMu.Lock()
		t.totalCost += cost
		t.totalTokens += int64(tokens)
		t.costMu.Unlock()
		promCost.Add(cost)
	}
}

// RecordSearchCall records one web-search gateway call.
func (t *Telemetry) RecordSearchCall() {
	if !t.config.Enabled {
		return
	}
	t.mu.Lock()
	t.stats.SearchCalls++
	t.mu.Unlock()
	promSearchCalls.Inc()
}

// TotalCost returns the accumulated estimated spend.
func (t *Telemetry) TotalCost() float64 {
	t.costMu.RLock()
	defer t.costMu.RUnlock()
	return t.totalCost
}

// TotalTokens returns the tokens consumed by cost-tracked calls.
func (t *Telemetry) TotalTokens() int64 {
	t.costMu.RLock()
	defer t.costMu.RUnlock()
	return t.totalTokens
}

// Snapshot returns a copy of the current counters for logging and status
// endpoints.
func (t *Telemetry) Snapshot() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap := t.stats
	snap.LLMCalls = make(map[string]int64, len(t.stats.LLMCalls))
	snap.LLMTokens = make(map[string]int64, len(t.stats.LLMTokens))
	for k, v := range t.stats.LLMCalls {
		snap.LLMCalls[k] = v
	}
	for k, v := range t.stats.LLMTokens {
		snap.LLMTokens[k] = v
	}
	return snap
}

func (t *Telemetry) logLoop() {
	ticker := time.NewTicker(logInterval)
	defer ticker.Stop()
	for range ticker.C {
		s := t.Snapshot()
		var llmCalls int64
		for _, n := range s.LLMCalls {
			llmCalls += n
		}
		t.logger.Printf("runs=%d ok=%d failed=%d retried=%d avg=%s llm_calls=%d search_calls=%d tokens=%d cost=$%.4f",
			s.TotalRuns, s.SuccessfulRuns, s.FailedRuns, s.RetriedRuns,
			s.AverageProcessingTime, llmCalls, s.SearchCalls, t.TotalTokens(), t.TotalCost())
	}
}
