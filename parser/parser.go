// Package parser turns a product detail page into a models.ParsedResult.
//
// Each field is extracted in isolation. A structural mismatch in one part of
// the page is logged and reported through Extractor.OnFailure, and the field
// is left absent; it never prevents the other fields from being extracted.
package parser

import (
	"fmt"
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/kdp-parser/models"
)

// Field names used in logs and metrics.
const (
	FieldRating           = "rating"
	FieldReviewsCount     = "reviews_count"
	FieldRankedPlacements = "ranked_placements"
	FieldReviews          = "reviews"
)

// FieldError describes why a field could not be extracted. It never leaves
// this package except through Extractor.OnFailure.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func missing(field, what string) error {
	return &FieldError{Field: field, Reason: what + " not found"}
}

// Extractor runs every field extractor over a document.
type Extractor struct {
	// OnFailure is called once per field that degraded to absent because of an error.
	OnFailure func(field string, err error)
}

// Extract runs the rating, review count, ranked placement and review
// extractors independently and assembles the result.
func (e Extractor) Extract(doc *goquery.Document) *models.ParsedResult {
	result := &models.ParsedResult{}
	if doc == nil {
		return result
	}

	e.guard(FieldRating, func() (err error) {
		result.Rating, err = extractRating(doc)
		return err
	})
	e.guard(FieldReviewsCount, func() (err error) {
		result.ReviewsCount, err = extractReviewsCount(doc)
		return err
	})
	e.guard(FieldRankedPlacements, func() (err error) {
		result.RankedPlacements, err = extractRankedPlacements(doc)
		return err
	})
	e.guard(FieldReviews, func() (err error) {
		result.Reviews, err = extractReviews(doc)
		return err
	})

	if len(result.RankedPlacements) == 0 {
		result.RankedPlacements = nil
	}
	if len(result.Reviews) == 0 {
		result.Reviews = nil
	}
	return result
}

func (e Extractor) guard(field string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			e.fail(field, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := fn(); err != nil {
		e.fail(field, err)
	}
}

func (e Extractor) fail(field string, err error) {
	slog.Warn("field extraction failed", slog.String("field", field), slog.Any("error", err))
	if e.OnFailure != nil {
		e.OnFailure(field, err)
	}
}
