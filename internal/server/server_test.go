package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksattari/souschef/internal/history"
	"github.com/ksattari/souschef/internal/pipeline"
)

type stubRunner struct {
	lastReq pipeline.Request
	resp    *pipeline.Response
	err     error
}

func (s *stubRunner) Run(_ context.Context, req pipeline.Request) (*pipeline.Response, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

type stubIntents struct {
	intent pipeline.Intent
	err    error
	answer string
}

func (s *stubIntents) Extract(_ context.Context, _ string) (pipeline.Intent, error) {
	return s.intent, s.err
}

func (s *stubIntents) AnswerFollowUp(_ context.Context, _ string) (string, error) {
	return s.answer, nil
}

func sampleResponse() *pipeline.Response {
	return &pipeline.Response{
		RequestID: "req-1",
		Recipes: []pipeline.ScoredRecipe{
			{
				Recipe: pipeline.RecipeRecord{
					Title:      "steak pan sauce",
					SourceURL:  "https://a.example/1",
					SourceName: "Serious Eats",
					Difficulty: pipeline.DifficultyIntermediate,
				},
				Score:     82.5,
				Reasoning: "Good deglazing practice.",
			},
		},
		ProcessingTime: 1200 * time.Millisecond,
	}
}

func postJSON(e http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRecommendValidation(t *testing.T) {
	s := New(&stubRunner{resp: sampleResponse()}, &stubIntents{}, nil)
	e := s.Echo()

	cases := []struct {
		name string
		body string
	}{
		{"blank goal", `{"learning_goal": "   ", "skill_level": "beginner"}`},
		{"goal too short", `{"learning_goal": "ab", "skill_level": "beginner"}`},
		{"bad skill", `{"learning_goal": "pan sauces", "skill_level": "wizard"}`},
		{"too many restrictions", fmt.Sprintf(`{"learning_goal": "pan sauces", "skill_level": "beginner", "dietary_restrictions": [%s]}`,
			strings.Repeat(`"vegan",`, 10)+`"vegan"`)},
	}
	for _, c := range cases {
		rec := postJSON(e, "/api/recommend", c.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, c.name)
	}
}

func TestRecommendSuccess(t *testing.T) {
	runner := &stubRunner{resp: sampleResponse()}
	s := New(runner, &stubIntents{}, nil)
	e := s.Echo()

	rec := postJSON(e, "/api/recommend", `{"learning_goal": "pan sauces", "skill_level": "intermediate"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "req-1", body["request_id"])
	assert.EqualValues(t, 1200, body["processing_time_ms"])
	recipes := body["recipes"].([]any)
	assert.Len(t, recipes, 1)
}

func TestRecommendEmptyResultIsOK(t *testing.T) {
	runner := &stubRunner{resp: &pipeline.Response{RequestID: "req-2"}}
	s := New(runner, &stubIntents{}, nil)
	e := s.Echo()

	rec := postJSON(e, "/api/recommend", `{"learning_goal": "pan sauces", "skill_level": "beginner"}`)
	assert.Equal(t, http.StatusOK, rec.Code, "zero recipes is a normal response")
}

func TestRecommendGatewayFailure(t *testing.T) {
	runner := &stubRunner{err: fmt.Errorf("search gateway failure")}
	s := New(runner, &stubIntents{}, nil)
	e := s.Echo()

	rec := postJSON(e, "/api/recommend", `{"learning_goal": "pan sauces", "skill_level": "beginner"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRecommendMergesSessionHistory(t *testing.T) {
	store := history.NewMemoryStore(time.Hour)
	require.NoError(t, store.Record(context.Background(), "sess-1", []string{"https://a.example/seen"}))

	runner := &stubRunner{resp: sampleResponse()}
	s := New(runner, &stubIntents{}, store)
	e := s.Echo()

	rec := postJSON(e, "/api/recommend", `{"learning_goal": "pan sauces", "skill_level": "beginner", "session_id": "sess-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, runner.lastReq.ExcludedIdentifiers, "https://a.example/seen")

	// The newly shown recipe joins the session history.
	seen, err := store.Seen(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Contains(t, seen, "https://a.example/1")
}

func TestChatRecipeRequest(t *testing.T) {
	runner := &stubRunner{resp: sampleResponse()}
	intents := &stubIntents{intent: pipeline.Intent{
		LearningGoal: "pan sauces",
		SkillLevel:   pipeline.SkillBeginner,
	}}
	s := New(runner, intents, nil)
	e := s.Echo()

	rec := postJSON(e, "/api/chat", `{"message": "teach me pan sauces, never made one"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "recipes", body["type"])
	assert.NotEmpty(t, body["session_id"])
	assert.NotNil(t, body["result"])
	assert.Equal(t, "pan sauces", runner.lastReq.LearningGoal)
}

func TestChatFollowUpQuestion(t *testing.T) {
	intents := &stubIntents{err: fmt.Errorf("not a recipe request"), answer: "Deglaze with wine or stock."}
	s := New(&stubRunner{}, intents, nil)
	e := s.Echo()

	rec := postJSON(e, "/api/chat", `{"message": "what does deglazing mean?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "answer", body["type"])
	assert.Equal(t, "Deglaze with wine or stock.", body["answer"])
}

func TestHealthz(t *testing.T) {
	s := New(&stubRunner{}, &stubIntents{}, nil)
	e := s.Echo()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
