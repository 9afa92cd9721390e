package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ksattari/souschef/internal/telemetry"
)

// Orchestrator owns the shared state and drives the stages:
// PLANNING -> RETRIEVING -> (retry decision) -> SELECTING -> ENRICHING ->
// DONE. The retry edge routes back to PLANNING with a broadened strategy at
// most MaxRetries times.
type Orchestrator struct {
	planner   *Planner
	retriever *Retriever
	selector  *Selector
	enricher  *Enricher
	telemetry *telemetry.Telemetry
	logger    *log.Logger

	minAcceptable  int
	maxRetries     int
	requestTimeout time.Duration
}

// OrchestratorParams bundles the orchestrator's collaborators and limits.
type OrchestratorParams struct {
	Planner        *Planner
	Retriever      *Retriever
	Selector       *Selector
	Enricher       *Enricher
	Telemetry      *telemetry.Telemetry
	MinAcceptable  int
	MaxRetries     int
	RequestTimeout time.Duration
}

// NewOrchestrator creates the pipeline orchestrator.
func NewOrchestrator(p OrchestratorParams) *Orchestrator {
	if p.MinAcceptable < 1 {
		p.MinAcceptable = 2
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 2
	}
	if p.RequestTimeout == 0 {
		p.RequestTimeout = 60 * time.Second
	}
	return &Orchestrator{
		planner:        p.Planner,
		retriever:      p.Retriever,
		selector:       p.Selector,
		enricher:       p.Enricher,
		telemetry:      p.Telemetry,
		logger:         log.New(log.Writer(), "[ORCH] ", log.LstdFlags),
		minAcceptable:  p.MinAcceptable,
		maxRetries:     p.MaxRetries,
		requestTimeout: p.RequestTimeout,
	}
}

// Run executes one full pipeline pass for the request. Zero selected
// recipes is a normal response; only gateway-level outages and the
// end-to-end deadline abort the run.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.requestTimeout)
	defer cancel()

	state := NewState(req)
	requestID := uuid.NewString()
	o.logger.Printf("run %s: goal=%q skill=%s", requestID, req.LearningGoal, req.SkillLevel)

	err := o.runStages(ctx, state)
	if o.telemetry != nil {
		o.telemetry.RecordRun(time.Since(start), state.RetryCount > 0, err)
	}
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", requestID, err)
	}

	resp := &Response{
		RequestID:      requestID,
		Recipes:        state.SelectedRecipes,
		Comparison:     BuildComparison(state.SelectedRecipes),
		Diagnostics:    state.Diagnostics,
		RetryCount:     state.RetryCount,
		ProcessingTime: time.Since(start),
	}
	if len(resp.Recipes) == 0 {
		resp.Diagnostics.AddNote("no recipes matched after %d retries; try broadening the goal", state.RetryCount)
	}
	return resp, nil
}

func (o *Orchestrator) runStages(ctx context.Context, state *OrchestrationState) error {
	// Bounded loop over PLANNING + RETRIEVING; at most maxRetries extra
	// cycles, then selection proceeds with whatever was found. triedQueries
	// accumulates across attempts so broadened sets never repeat any
	// earlier query.
	var triedQueries []string
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("deadline exceeded before %s: %w", state.Stage, err)
		}

		state.Stage = StagePlanning
		planStart := time.Now()
		state.SearchQueries = o.planner.Plan(ctx, state.Request, state.SearchStrategy, triedQueries, &state.Diagnostics)
		triedQueries = append(triedQueries, state.SearchQueries...)
		o.recordStage(StagePlanning, planStart)

		state.Stage = StageRetrieving
		retrieveStart := time.Now()
		candidates, err := o.retriever.Retrieve(ctx, state.SearchQueries, state.Request.DietaryRestrictions, &state.Diagnostics)
		o.recordStage(StageRetrieving, retrieveStart)
		if err != nil {
			return err
		}
		state.CandidateRecipes = candidates

		if len(state.CandidateRecipes) >= o.minAcceptable || state.RetryCount >= o.maxRetries {
			break
		}
		state.SearchStrategy = StrategyBroadened
		state.RetryCount++
		state.Diagnostics.AddNote("only %d candidates after attempt %d; retrying with broadened queries",
			len(state.CandidateRecipes), state.RetryCount)
		o.logger.Printf("retry %d/%d: %d candidates, broadening", state.RetryCount, o.maxRetries, len(state.CandidateRecipes))
	}

	state.Stage = StageSelecting
	selectStart := time.Now()
	state.SelectedRecipes = o.selector.Select(ctx, state.CandidateRecipes, state.Request, &state.Diagnostics)
	o.recordStage(StageSelecting, selectStart)

	state.Stage = StageEnriching
	enrichStart := time.Now()
	o.enricher.Enrich(ctx, state.SelectedRecipes, &state.Diagnostics)
	o.recordStage(StageEnriching, enrichStart)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("deadline exceeded during %s: %w", state.Stage, err)
	}
	state.Stage = StageDone
	return nil
}

func (o *Orchestrator) recordStage(stage Stage, start time.Time) {
	if o.telemetry != nil {
		o.telemetry.RecordStage(string(stage), time.Since(start))
	}
}
