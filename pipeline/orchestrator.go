// Package pipeline ties fetching, challenge inspection, snapshots and field
// extraction together, and runs catalog-wide parse batches.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/kdp-parser/models"
	"github.com/aluiziolira/kdp-parser/parser"
	"github.com/aluiziolira/kdp-parser/scraper"
)

// PageFetcher returns the raw HTML of a product page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FetchFailure is returned by Orchestrator.Parse when no usable page could be
// obtained. Err carries the scraper error that caused it.
type FetchFailure struct {
	URL string
	Err error
}

func (e *FetchFailure) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchFailure) Unwrap() error {
	return e.Err
}

// Orchestrator parses a single product page.
type Orchestrator struct {
	fetcher   PageFetcher
	detector  scraper.ChallengeDetector
	snapshots *SnapshotStore
	metrics   *scraper.Metrics
}

// NewOrchestrator wires a fetcher to the extractors. snapshots and metrics may be nil.
func NewOrchestrator(fetcher PageFetcher, detector scraper.ChallengeDetector, snapshots *SnapshotStore, metrics *scraper.Metrics) *Orchestrator {
	return &Orchestrator{
		fetcher:   fetcher,
		detector:  detector,
		snapshots: snapshots,
		metrics:   metrics,
	}
}

// Parse fetches url and extracts every field it can. Only fetch problems are
// returned as errors; missing fields are simply absent from the result.
func (o *Orchestrator) Parse(ctx context.Context, url string) (*models.ParsedResult, error) {
	body, err := o.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, &FetchFailure{URL: url, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, &FetchFailure{URL: url, Err: fmt.Errorf("parse html: %w", err)}
	}

	inspection := o.detector.Inspect(doc)
	if inspection.IsChallenge {
		return nil, &FetchFailure{URL: url, Err: scraper.ErrChallenge}
	}

	if o.snapshots != nil {
		if path, err := o.snapshots.Save(inspection.Title, body); err != nil {
			slog.Warn("snapshot not saved", slog.String("url", url), slog.Any("error", err))
		} else {
			slog.Debug("snapshot saved", slog.String("path", path))
		}
	}

	extractor := parser.Extractor{OnFailure: func(field string, _ error) {
		o.metrics.IncExtractionFailure(field)
	}}
	result := extractor.Extract(doc)

	slog.Info("page parsed",
		slog.String("url", url),
		slog.Bool("has_rating", result.Rating != nil),
		slog.Bool("has_reviews_count", result.ReviewsCount != nil),
		slog.Int("ranked_placements", len(result.RankedPlacements)),
		slog.Int("reviews", len(result.Reviews)),
	)
	return result, nil
}
