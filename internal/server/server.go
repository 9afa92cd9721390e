package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appconfig "github.com/ksattari/souschef/config"
	"github.com/ksattari/souschef/internal/history"
	"github.com/ksattari/souschef/internal/llm"
	"github.com/ksattari/souschef/internal/pipeline"
	"github.com/ksattari/souschef/internal/search"
	"github.com/ksattari/souschef/internal/telemetry"
)

// Runner is the pipeline surface the HTTP layer depends on.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Response, error)
}

// IntentService parses chat messages and answers follow-up questions.
type IntentService interface {
	Extract(ctx context.Context, message string) (pipeline.Intent, error)
	AnswerFollowUp(ctx context.Context, message string) (string, error)
}

// Server wires the HTTP API over the pipeline.
type Server struct {
	runner  Runner
	intents IntentService
	history history.Store
	logger  *log.Logger
}

// New creates a server around existing collaborators. Used directly by
// handler tests.
func New(runner Runner, intents IntentService, store history.Store) *Server {
	return &Server{
		runner:  runner,
		intents: intents,
		history: store,
		logger:  log.New(log.Writer(), "[HTTP] ", log.LstdFlags),
	}
}

// Run builds the full dependency graph from config and serves until the
// listener fails.
func Run(cfg *appconfig.Config) error {
	tele := telemetry.NewTelemetry(cfg.Telemetry)

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}
	provider = llm.WithUsageRecording(provider, tele)

	searcher, err := search.NewSearcher(cfg.Search)
	if err != nil {
		return err
	}
	searcher = search.WithCallRecording(searcher, tele)

	orch := pipeline.NewOrchestrator(pipeline.OrchestratorParams{
		Planner:        pipeline.NewPlanner(provider, cfg.Pipeline.MaxQueries, cfg.Pipeline.QueryLengthCap),
		Retriever:      pipeline.NewRetriever(searcher, provider, cfg.Pipeline.MaxQueries),
		Selector:       pipeline.NewSelector(pipeline.DefaultScoringPolicy(), provider, cfg.Pipeline.TopK, cfg.Pipeline.TitleSimilarityCutoff),
		Enricher:       pipeline.NewEnricher(provider),
		Telemetry:      tele,
		MinAcceptable:  cfg.Pipeline.MinAcceptableCandidates,
		MaxRetries:     cfg.Pipeline.MaxRetries,
		RequestTimeout: cfg.General.RequestTimeout,
	})

	var store history.Store
	if cfg.History.Enabled {
		store = history.NewStore(cfg.History)
	}

	s := New(orch, pipeline.NewIntentExtractor(provider), store)
	e := s.Echo()
	return e.Start(cfg.Server.Address)
}

// Echo assembles the echo instance with middleware and routes.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.POST("/recommend", s.handleRecommend)
	api.POST("/chat", s.handleChat)
	return e
}

type recommendRequest struct {
	pipeline.Request
	SessionID string `json:"session_id,omitempty"`
}

type recommendResponse struct {
	*pipeline.Response
	ProcessingTimeMS int64 `json:"processing_time_ms"`
}

func (s *Server) handleRecommend(c echo.Context) error {
	var req recommendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	s.mergeHistory(ctx, req.SessionID, &req.Request)

	resp, err := s.runner.Run(ctx, req.Request)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	s.recordHistory(ctx, req.SessionID, resp)

	return c.JSON(http.StatusOK, recommendResponse{
		Response:         resp,
		ProcessingTimeMS: resp.ProcessingTime.Milliseconds(),
	})
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Type      string             `json:"type"` // recipes or answer
	SessionID string             `json:"session_id"`
	Answer    string             `json:"answer,omitempty"`
	Intent    *pipeline.Intent   `json:"intent,omitempty"`
	Result    *pipeline.Response `json:"result,omitempty"`
}

func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Message) < 3 {
		return echo.NewHTTPError(http.StatusBadRequest, "message too short")
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	ctx := c.Request().Context()

	intent, err := s.intents.Extract(ctx, req.Message)
	if err != nil {
		// Not a recipe request; answer it as a cooking question.
		answer, aerr := s.intents.AnswerFollowUp(ctx, req.Message)
		if aerr != nil {
			return echo.NewHTTPError(http.StatusBadGateway, aerr.Error())
		}
		return c.JSON(http.StatusOK, chatResponse{Type: "answer", SessionID: req.SessionID, Answer: answer})
	}

	pReq := intent.Request()
	s.mergeHistory(ctx, req.SessionID, &pReq)

	resp, err := s.runner.Run(ctx, pReq)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	s.recordHistory(ctx, req.SessionID, resp)

	return c.JSON(http.StatusOK, chatResponse{
		Type:      "recipes",
		SessionID: req.SessionID,
		Intent:    &intent,
		Result:    resp,
	})
}

// mergeHistory folds previously shown recipe URLs for the session into the
// request's exclusions.
func (s *Server) mergeHistory(ctx context.Context, sessionID string, req *pipeline.Request) {
	if s.history == nil || sessionID == "" {
		return
	}
	hctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	seen, err := s.history.Seen(hctx, sessionID)
	if err != nil {
		s.logger.Printf("history lookup failed for %s: %v", sessionID, err)
		return
	}
	req.ExcludedIdentifiers = append(req.ExcludedIdentifiers, seen...)
}

func (s *Server) recordHistory(ctx context.Context, sessionID string, resp *pipeline.Response) {
	if s.history == nil || sessionID == "" || len(resp.Recipes) == 0 {
		return
	}
	urls := make([]string, 0, len(resp.Recipes))
	for _, r := range resp.Recipes {
		urls = append(urls, r.Recipe.SourceURL)
	}
	hctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.history.Record(hctx, sessionID, urls); err != nil {
		s.logger.Printf("history record failed for %s: %v", sessionID, err)
	}
}
