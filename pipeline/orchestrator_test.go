package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aluiziolira/kdp-parser/config"
	"github.com/aluiziolira/kdp-parser/scraper"
	"github.com/jarcoal/httpmock"
)

const (
	productURL    = "https://www.amazon.test/dp/B0QUIET123?language=en_GB"
	challengePage = `<html><head><title>Robot Check</title></head><body><input id="captchacharacters"></body></html>`
)

func readFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "parser", "testdata", "product.html"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return string(data)
}

func newMockFetcher(t *testing.T, mock *httpmock.MockTransport) *scraper.Fetcher {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Proxies = []string{"10.0.0.1:8001:alice:pw1", "10.0.0.2:8002:bob:pw2"}
	fetcher, err := scraper.NewFetcher(cfg,
		scraper.WithRand(rand.New(rand.NewPCG(7, 11))),
		scraper.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
		scraper.WithTransport(func(scraper.SessionConfig) http.RoundTripper { return mock }),
	)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	return fetcher
}

func newTestSnapshots(t *testing.T) (*SnapshotStore, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "snapshots")
	store, err := NewSnapshotStore(dir)
	if err != nil {
		t.Fatalf("snapshot store: %v", err)
	}
	return store, dir
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

type stubFetcher struct {
	body  string
	err   error
	calls int
}

func (s *stubFetcher) Fetch(context.Context, string) (string, error) {
	s.calls++
	return s.body, s.err
}

func TestOrchestratorParsesProductPage(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodGet, productURL, httpmock.NewStringResponder(http.StatusOK, readFixture(t)))

	snapshots, dir := newTestSnapshots(t)
	metrics := scraper.NewMetrics()
	orchestrator := NewOrchestrator(newMockFetcher(t, mock), scraper.NewChallengeDetector(20), snapshots, metrics)

	result, err := orchestrator.Parse(context.Background(), productURL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.Rating == nil || *result.Rating != 4.6 {
		t.Fatalf("rating = %v", result.Rating)
	}
	if result.ReviewsCount == nil || *result.ReviewsCount != 12345 {
		t.Fatalf("reviews count = %v", result.ReviewsCount)
	}
	if len(result.RankedPlacements) != 3 || len(result.Reviews) != 3 {
		t.Fatalf("ranks=%d reviews=%d", len(result.RankedPlacements), len(result.Reviews))
	}

	names := listDir(t, dir)
	if len(names) != 1 || names[0] != "The Quiet Garden: A.html" {
		t.Fatalf("snapshots = %v", names)
	}
	if got := mock.GetTotalCallCount(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestOrchestratorRejectedPageIsFetchFailure(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodGet, productURL, httpmock.NewStringResponder(http.StatusNotFound, "<html><title>Gone</title></html>"))

	snapshots, dir := newTestSnapshots(t)
	orchestrator := NewOrchestrator(newMockFetcher(t, mock), scraper.NewChallengeDetector(20), snapshots, nil)

	_, err := orchestrator.Parse(context.Background(), productURL)
	var failure *FetchFailure
	if !errors.As(err, &failure) {
		t.Fatalf("err = %v, want FetchFailure", err)
	}
	var rejected scraper.ErrRejected
	if !errors.As(err, &rejected) || rejected.StatusCode != http.StatusNotFound {
		t.Fatalf("err = %v, want ErrRejected 404", err)
	}
	if names := listDir(t, dir); len(names) != 0 {
		t.Fatalf("snapshot written on failure: %v", names)
	}
}

func TestOrchestratorTransientExhaustionIsFetchFailure(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodGet, productURL,
		httpmock.NewErrorResponder(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}))

	snapshots, dir := newTestSnapshots(t)
	orchestrator := NewOrchestrator(newMockFetcher(t, mock), scraper.NewChallengeDetector(20), snapshots, nil)

	_, err := orchestrator.Parse(context.Background(), productURL)
	var failure *FetchFailure
	if !errors.As(err, &failure) {
		t.Fatalf("err = %v, want FetchFailure", err)
	}
	var exhausted scraper.ErrFetchExhausted
	if !errors.As(err, &exhausted) || exhausted.Attempts != 3 {
		t.Fatalf("err = %v, want ErrFetchExhausted after 3 attempts", err)
	}
	if got := mock.GetTotalCallCount(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
	if names := listDir(t, dir); len(names) != 0 {
		t.Fatalf("snapshot written on failure: %v", names)
	}
}

func TestOrchestratorChallengeIsFetchFailure(t *testing.T) {
	snapshots, dir := newTestSnapshots(t)
	fetcher := &stubFetcher{body: challengePage}
	orchestrator := NewOrchestrator(fetcher, scraper.NewChallengeDetector(20), snapshots, nil)

	_, err := orchestrator.Parse(context.Background(), productURL)
	var failure *FetchFailure
	if !errors.As(err, &failure) || failure.URL != productURL {
		t.Fatalf("err = %v, want FetchFailure", err)
	}
	if !errors.Is(err, scraper.ErrChallenge) {
		t.Fatalf("err = %v, want ErrChallenge", err)
	}
	if names := listDir(t, dir); len(names) != 0 {
		t.Fatalf("snapshot written for challenge: %v", names)
	}
}

func TestOrchestratorEmptyPageHasNoFields(t *testing.T) {
	fetcher := &stubFetcher{body: "<html><head></head><body></body></html>"}
	orchestrator := NewOrchestrator(fetcher, scraper.NewChallengeDetector(20), nil, scraper.NewMetrics())

	result, err := orchestrator.Parse(context.Background(), productURL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !result.Empty() {
		t.Fatalf("result = %+v, want empty", result)
	}
}

func TestSnapshotNames(t *testing.T) {
	store, dir := newTestSnapshots(t)
	store.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 600000000, time.UTC) }

	title := "Poems/Selected"
	for i := 0; i < 3; i++ {
		if _, err := store.Save(&title, "<html></html>"); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if _, err := store.Save(nil, "<html></html>"); err != nil {
		t.Fatalf("save untitled: %v", err)
	}

	want := map[string]bool{
		"Poems_Selected.html":             true,
		"Poems_Selected-2.html":           true,
		"Poems_Selected-3.html":           true,
		"2026-01-02T03-04-05.600000.html": true,
	}
	names := listDir(t, dir)
	if len(names) != len(want) {
		t.Fatalf("snapshots = %v", names)
	}
	for _, name := range names {
		if !want[name] {
			t.Errorf("unexpected snapshot %q", name)
		}
	}
}
