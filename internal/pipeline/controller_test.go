package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"docembed/internal/chunker"
	"docembed/internal/domain"
	"docembed/internal/embedding"
)

func newTestController(t *testing.T, m *embedding.MockEmbedder, maxWords int) *Controller {
	t.Helper()
	wc, err := chunker.NewWordChunker(maxWords)
	if err != nil {
		t.Fatalf("NewWordChunker() error = %v", err)
	}
	return NewController(wc, newTestDriver(t, m), zerolog.Nop())
}

func TestController_FullRun(t *testing.T) {
	m := &embedding.MockEmbedder{}
	c := newTestController(t, m, 4)

	if got := c.Snapshot().Phase; got != domain.PhaseIdle {
		t.Fatalf("initial phase = %v, want idle", got)
	}
	if err := c.SubmitDocument("notes.txt", "a b c d e f g h i j"); err != nil {
		t.Fatalf("SubmitDocument() error = %v", err)
	}
	s := c.Snapshot()
	if s.Phase != domain.PhaseChunked || len(s.Chunks) != 3 || s.RunID == "" {
		t.Fatalf("after submit: phase=%v chunks=%d run=%q", s.Phase, len(s.Chunks), s.RunID)
	}

	var seen []float64
	if err := c.StartEmbedding(context.Background(), func(p float64) { seen = append(seen, p) }); err != nil {
		t.Fatalf("StartEmbedding() error = %v", err)
	}
	s = c.Snapshot()
	if s.Phase != domain.PhaseComplete || s.Progress != 100 || len(s.Results) != 3 {
		t.Fatalf("after embedding: phase=%v progress=%v results=%d", s.Phase, s.Progress, len(s.Results))
	}
	if len(seen) != 4 {
		t.Fatalf("progress callbacks = %d, want 4", len(seen))
	}

	doc, err := c.Export()
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if doc.SourceName != "notes.txt" || doc.Dimension != 4 || len(doc.Items) != 3 {
		t.Fatalf("Export() = source %q dimension %d items %d", doc.SourceName, doc.Dimension, len(doc.Items))
	}
	if doc.Items[2].Text != "i j" {
		t.Fatalf("last item text = %q, want %q", doc.Items[2].Text, "i j")
	}

	// export leaves the run untouched
	if c.Snapshot().Phase != domain.PhaseComplete {
		t.Fatalf("Export() changed the phase")
	}
}

func TestController_EmptyDocumentStaysIdle(t *testing.T) {
	c := newTestController(t, &embedding.MockEmbedder{}, 4)
	for _, text := range []string{"", "   \n\t  "} {
		err := c.SubmitDocument("blank.txt", text)
		if !errors.Is(err, domain.ErrEmptyDocument) {
			t.Fatalf("SubmitDocument(%q) error = %v, want ErrEmptyDocument", text, err)
		}
		s := c.Snapshot()
		if s.Phase != domain.PhaseIdle || !errors.Is(s.LastError, domain.ErrEmptyDocument) {
			t.Fatalf("after empty submit: phase=%v lastErr=%v", s.Phase, s.LastError)
		}
	}
	if err := c.StartEmbedding(context.Background(), nil); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Fatalf("StartEmbedding() from idle error = %v, want ErrInvalidPhase", err)
	}
}

func TestController_StartEmbeddingIsNoOpWhenComplete(t *testing.T) {
	m := &embedding.MockEmbedder{}
	c := newTestController(t, m, 4)
	if err := c.SubmitDocument("a.txt", "one two three"); err != nil {
		t.Fatalf("SubmitDocument() error = %v", err)
	}
	if err := c.StartEmbedding(context.Background(), nil); err != nil {
		t.Fatalf("StartEmbedding() error = %v", err)
	}
	calls := len(m.Calls())
	if err := c.StartEmbedding(context.Background(), nil); err != nil {
		t.Fatalf("second StartEmbedding() error = %v", err)
	}
	if len(m.Calls()) != calls {
		t.Fatalf("second StartEmbedding() re-ran the embedder")
	}
}

func TestController_FailureKeepsProgressAndError(t *testing.T) {
	boom := errors.New("inference crashed")
	m := &embedding.MockEmbedder{FailOn: map[int]error{1: boom}}
	c := newTestController(t, m, 4)
	if err := c.SubmitDocument("a.txt", "a b c d e f g h i j"); err != nil {
		t.Fatalf("SubmitDocument() error = %v", err)
	}

	err := c.StartEmbedding(context.Background(), nil)
	if id, ok := domain.FailedChunkID(err); !ok || id != 2 {
		t.Fatalf("StartEmbedding() error = %v, want failure on chunk 2", err)
	}
	s := c.Snapshot()
	if s.Phase != domain.PhaseFailed {
		t.Fatalf("phase = %v, want failed", s.Phase)
	}
	if !errors.Is(s.LastError, boom) {
		t.Fatalf("LastError = %v, want %v", s.LastError, boom)
	}
	if len(s.Results) != 0 {
		t.Fatalf("results = %d, want none", len(s.Results))
	}
	if got := math.Round(s.Progress*100) / 100; got != 46.67 {
		t.Fatalf("progress = %v, want 46.67", got)
	}

	if _, err := c.Export(); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Fatalf("Export() error = %v, want ErrInvalidPhase", err)
	}
	if err := c.StartEmbedding(context.Background(), nil); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Fatalf("StartEmbedding() from failed error = %v, want ErrInvalidPhase", err)
	}

	// resubmitting recovers
	if err := c.SubmitDocument("a.txt", "fresh text"); err != nil {
		t.Fatalf("resubmit error = %v", err)
	}
	if s := c.Snapshot(); s.Phase != domain.PhaseChunked || s.LastError != nil || s.Progress != 0 {
		t.Fatalf("after resubmit: phase=%v lastErr=%v progress=%v", s.Phase, s.LastError, s.Progress)
	}
}

func TestController_RejectsWorkWhileEmbedding(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	m := &embedding.MockEmbedder{Hook: func(_ context.Context, call int) {
		if call == 0 {
			close(started)
			<-release
		}
	}}
	c := newTestController(t, m, 2)
	if err := c.SubmitDocument("a.txt", "a b c d"); err != nil {
		t.Fatalf("SubmitDocument() error = %v", err)
	}
	firstRunID := c.Snapshot().RunID

	done := make(chan error, 1)
	go func() { done <- c.StartEmbedding(context.Background(), nil) }()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("embedding never started")
	}

	if got := c.Snapshot().Phase; got != domain.PhaseEmbedding {
		t.Fatalf("phase = %v, want embedding", got)
	}
	if err := c.SubmitDocument("b.txt", "other"); !errors.Is(err, domain.ErrOperationInProgress) {
		t.Fatalf("SubmitDocument() while embedding error = %v, want ErrOperationInProgress", err)
	}
	if err := c.StartEmbedding(context.Background(), nil); err != nil {
		t.Fatalf("duplicate StartEmbedding() error = %v, want nil", err)
	}
	close(release)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("StartEmbedding() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("embedding never finished")
	}
	s := c.Snapshot()
	if s.Phase != domain.PhaseComplete || s.RunID != firstRunID || s.SourceName != "a.txt" {
		t.Fatalf("after run: phase=%v run=%q source=%q", s.Phase, s.RunID, s.SourceName)
	}
	if len(m.Calls()) != 2 || m.PeakConcurrency() != 1 {
		t.Fatalf("calls=%d peak=%d, want 2 and 1", len(m.Calls()), m.PeakConcurrency())
	}
}

func TestController_CancelReturnsToChunked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := &embedding.MockEmbedder{Hook: func(_ context.Context, call int) {
		if call == 0 {
			cancel()
		}
	}}
	c := newTestController(t, m, 4)
	if err := c.SubmitDocument("a.txt", "a b c d e f g h i j"); err != nil {
		t.Fatalf("SubmitDocument() error = %v", err)
	}

	err := c.StartEmbedding(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("StartEmbedding() error = %v, want context.Canceled", err)
	}
	s := c.Snapshot()
	if s.Phase != domain.PhaseChunked || s.Progress != 0 || len(s.Results) != 0 || len(s.Chunks) != 3 {
		t.Fatalf("after cancel: phase=%v progress=%v results=%d chunks=%d", s.Phase, s.Progress, len(s.Results), len(s.Chunks))
	}

	// a fresh run succeeds from the same chunks
	if err := c.StartEmbedding(context.Background(), nil); err != nil {
		t.Fatalf("StartEmbedding() after cancel error = %v", err)
	}
	if c.Snapshot().Phase != domain.PhaseComplete {
		t.Fatalf("phase = %v, want complete", c.Snapshot().Phase)
	}
}

func TestController_ExportRequiresComplete(t *testing.T) {
	c := newTestController(t, &embedding.MockEmbedder{}, 4)
	if _, err := c.Export(); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Fatalf("Export() from idle error = %v, want ErrInvalidPhase", err)
	}
	if err := c.SubmitDocument("a.txt", "words here"); err != nil {
		t.Fatalf("SubmitDocument() error = %v", err)
	}
	if _, err := c.Export(); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Fatalf("Export() from chunked error = %v, want ErrInvalidPhase", err)
	}
}
