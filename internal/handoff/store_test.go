package handoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openprep/exam-gateway/internal/model"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	value := model.HandoffValue{
		Summary: model.ScoreSummary{TotalCorrect: 3, TotalScore: 55},
		Meta:    model.HandoffMeta{ExamID: "42", AnsweredCount: 3, TotalQuestions: 5},
	}
	if err := store.Put(ctx, "toeic_result_42", value); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var got model.HandoffValue
	if err := store.Get(ctx, "toeic_result_42", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Summary.TotalScore != 55 || got.Meta.ExamID != "42" {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestMemoryStoreMissingKey(t *testing.T) {
	store := NewMemoryStore(time.Minute)

	var got model.HandoffValue
	if err := store.Get(context.Background(), "nope", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(10 * time.Millisecond)
	ctx := context.Background()

	if err := store.Put(ctx, "k", model.HandoffValue{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	var got model.HandoffValue
	if err := store.Get(ctx, "k", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected expiry, got %v", err)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	if err := store.Put(ctx, "k", model.HandoffValue{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var got model.HandoffValue
	if err := store.Get(ctx, "k", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStoreOverwrite(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	store.Put(ctx, "k", model.HandoffValue{Summary: model.ScoreSummary{TotalScore: 1}})
	store.Put(ctx, "k", model.HandoffValue{Summary: model.ScoreSummary{TotalScore: 2}})

	var got model.HandoffValue
	if err := store.Get(ctx, "k", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Summary.TotalScore != 2 {
		t.Errorf("score = %d, want the later write", got.Summary.TotalScore)
	}
}
