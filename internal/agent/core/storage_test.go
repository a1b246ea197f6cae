package core

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStorageRoundTrip(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	env := Envelope{
		Status:  StatusCompleted,
		Results: map[string]interface{}{"executive_summary": "done"},
		Summary: "done",
		WorkflowTrace: &WorkflowTrace{
			ResearchCompleted: true,
			AnalysisCompleted: true,
			StrategyCompleted: true,
			FinalAgent:        AgentComplete,
		},
	}
	if err := s.SaveReport(ctx, "run-1", env); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetReport(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusCompleted || got.WorkflowTrace.FinalAgent != AgentComplete {
		t.Fatalf("stored envelope mangled: %+v", got)
	}
}

func TestMemoryStorageMissingReport(t *testing.T) {
	s := NewMemoryStorage()
	_, err := s.GetReport(context.Background(), "nope")
	if !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
}
