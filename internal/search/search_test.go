package search

import (
	"context"
	"errors"
	"testing"
)

type stubSearcher struct {
	results []Result
	err     error
}

func (s *stubSearcher) Search(_ context.Context, _ string) ([]Result, error) {
	return s.results, s.err
}

type countRecorder struct {
	n int
}

func (c *countRecorder) RecordSearchCall() { c.n++ }

func TestWithCallRecordingCountsEveryCall(t *testing.T) {
	rec := &countRecorder{}
	s := WithCallRecording(&stubSearcher{results: []Result{{URL: "https://a.example/1"}}}, rec)

	results, err := s.Search(context.Background(), "pan sauce recipe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("wrapper must pass results through, got %d", len(results))
	}

	failing := WithCallRecording(&stubSearcher{err: errors.New("timeout")}, rec)
	if _, err := failing.Search(context.Background(), "pan sauce recipe"); err == nil {
		t.Fatalf("expected the searcher error to pass through")
	}
	if rec.n != 2 {
		t.Fatalf("expected 2 recorded calls, got %d", rec.n)
	}
}

func TestWithCallRecordingNilRecorder(t *testing.T) {
	inner := &stubSearcher{}
	if s := WithCallRecording(inner, nil); s != Searcher(inner) {
		t.Fatalf("nil recorder should return the searcher unwrapped")
	}
}
