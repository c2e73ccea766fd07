package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/quillworks-ai/quill"
	"github.com/quillworks-ai/quill/ai"
	"github.com/quillworks-ai/quill/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "data", "quill.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func completeState(runID string, at time.Time) quill.RunState {
	return quill.RunState{
		RunID:      runID,
		Stages:     append([]string(nil), quill.StageOrder...),
		StageIndex: len(quill.StageOrder) - 1,
		Status:     quill.StatusComplete,
		Results: []quill.StageResult{
			{
				StageID:    quill.StageBrandAnalyzer,
				Status:     quill.StageSucceeded,
				Usage:      ai.Usage{PromptTokens: 200, CompletionTokens: 100, TotalTokens: 300},
				StartedAt:  at,
				FinishedAt: at.Add(2 * time.Second),
			},
			{
				StageID:    quill.StageWriter,
				Status:     quill.StageSucceeded,
				Warnings:   []string{"section retry"},
				Usage:      ai.Usage{PromptTokens: 400, CompletionTokens: 600, TotalTokens: 1000},
				StartedAt:  at.Add(2 * time.Second),
				FinishedAt: at.Add(10 * time.Second),
			},
		},
		CreatedAt: at,
		UpdatedAt: at.Add(10 * time.Second),
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	state := completeState("run-roundtrip", created)
	artifact := &quill.Artifact{
		Title:           "Remote Team Culture",
		MetaDescription: "How distributed teams keep culture alive.",
		Markdown:        "# Remote Team Culture\n\nBody.\n",
		HTML:            "<h1>Remote Team Culture</h1>\n<p>Body.</p>\n",
		StructuredData:  map[string]any{"@context": "https://schema.org", "@type": "Article"},
		Metadata: quill.ArtifactMetadata{
			WordCount:          420,
			ReadingTimeMinutes: 3,
			KeywordDensity:     map[string]float64{"culture": 1.9},
		},
	}

	if err := s.Save(ctx, store.NewRecord(state, artifact)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Get(ctx, "run-roundtrip")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected record, got nil")
	}
	if got.Status != quill.StatusComplete {
		t.Errorf("expected complete status, got %s", got.Status)
	}
	if got.Usage.TotalTokens != 1300 {
		t.Errorf("expected total usage 1300, got %d", got.Usage.TotalTokens)
	}
	if len(got.Stages) != 2 {
		t.Fatalf("expected 2 stage records, got %d", len(got.Stages))
	}
	if got.Stages[1].Stage != quill.StageWriter || len(got.Stages[1].Warnings) != 1 {
		t.Errorf("writer stage record mangled: %#v", got.Stages[1])
	}
	if got.Artifact == nil {
		t.Fatal("expected artifact to round trip")
	}
	if got.Artifact.Title != artifact.Title {
		t.Errorf("expected title %q, got %q", artifact.Title, got.Artifact.Title)
	}
	if got.Artifact.StructuredData["@type"] != "Article" {
		t.Errorf("structured data mangled: %#v", got.Artifact.StructuredData)
	}
	if got.Artifact.Metadata.KeywordDensity["culture"] != 1.9 {
		t.Errorf("keyword density mangled: %#v", got.Artifact.Metadata.KeywordDensity)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("expected created_at %v, got %v", created, got.CreatedAt)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := openStore(t)

	got, err := s.Get(context.Background(), "no-such-run")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing run, got %#v", got)
	}
}

func TestSaveUpsertsByRunID(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	running := quill.RunState{
		RunID:     "run-upsert",
		Stages:    append([]string(nil), quill.StageOrder...),
		Status:    quill.StatusRunning,
		CreatedAt: created,
		UpdatedAt: created,
	}
	if err := s.Save(ctx, store.NewRecord(running, nil)); err != nil {
		t.Fatalf("Save running failed: %v", err)
	}

	failed := running
	failed.Status = quill.StatusStageFailed
	failed.FailedStage = quill.StageWriter
	failed.Error = "writer: provider unavailable"
	failed.ErrorKind = quill.ErrorKindProvider
	failed.UpdatedAt = created.Add(time.Minute)
	if err := s.Save(ctx, store.NewRecord(failed, nil)); err != nil {
		t.Fatalf("Save failed state failed: %v", err)
	}

	got, err := s.Get(ctx, "run-upsert")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != quill.StatusStageFailed {
		t.Errorf("expected stage_failed after upsert, got %s", got.Status)
	}
	if got.FailedStage != quill.StageWriter || got.ErrorKind != quill.ErrorKindProvider {
		t.Errorf("failure detail lost: %#v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at should survive upsert, got %v", got.CreatedAt)
	}
	if !got.UpdatedAt.Equal(created.Add(time.Minute)) {
		t.Errorf("updated_at should advance, got %v", got.UpdatedAt)
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected a single row after upsert, got %d", len(all))
	}
}

func TestListFiltersByStatusNewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	states := []quill.RunState{
		{RunID: "run-a", Status: quill.StatusComplete, CreatedAt: base, UpdatedAt: base},
		{RunID: "run-b", Status: quill.StatusStageFailed, FailedStage: quill.StageEditor, CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour)},
		{RunID: "run-c", Status: quill.StatusComplete, CreatedAt: base.Add(2 * time.Hour), UpdatedAt: base.Add(2 * time.Hour)},
	}
	for _, state := range states {
		if err := s.Save(ctx, store.NewRecord(state, nil)); err != nil {
			t.Fatalf("Save %s failed: %v", state.RunID, err)
		}
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	if all[0].RunID != "run-c" || all[2].RunID != "run-a" {
		t.Errorf("expected newest first, got %s, %s, %s", all[0].RunID, all[1].RunID, all[2].RunID)
	}

	complete, err := s.List(ctx, quill.StatusComplete)
	if err != nil {
		t.Fatalf("List complete failed: %v", err)
	}
	if len(complete) != 2 {
		t.Fatalf("expected 2 complete records, got %d", len(complete))
	}
	for _, rec := range complete {
		if rec.Status != quill.StatusComplete {
			t.Errorf("filter leaked status %s", rec.Status)
		}
	}
}

func TestDeleteRemovesRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	state := quill.RunState{RunID: "run-del", Status: quill.StatusCancelled, CreatedAt: now, UpdatedAt: now}
	if err := s.Save(ctx, store.NewRecord(state, nil)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := s.Delete(ctx, "run-del"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, err := s.Get(ctx, "run-del")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Fatal("expected record to be gone")
	}

	if err := s.Delete(ctx, "run-del"); err != nil {
		t.Errorf("deleting an absent run should not error, got %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quill.db")
	ctx := context.Background()

	first, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	now := time.Now().UTC()
	state := quill.RunState{RunID: "run-persist", Status: quill.StatusComplete, CreatedAt: now, UpdatedAt: now}
	if err := first.Save(ctx, store.NewRecord(state, nil)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second, err := store.Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()

	got, err := second.Get(ctx, "run-persist")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if got == nil || got.Status != quill.StatusComplete {
		t.Fatalf("expected persisted record, got %#v", got)
	}
}
