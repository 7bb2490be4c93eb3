// Package models defines data structures shared by the fetcher, the parser and the catalog.
package models

// ParsedResult is the structured record extracted from one product page.
// Every field is optional on its own: nil means the field could not be
// located or parsed, never that it was zero.
type ParsedResult struct {
	Rating           *float64          `json:"rating"`
	ReviewsCount     *int              `json:"reviews_count"`
	RankedPlacements []RankedPlacement `json:"ranked_placements"`
	Reviews          []Review          `json:"reviews"`
}

// RankedPlacement pairs a category with the product's position in it.
type RankedPlacement struct {
	Place        *int   `json:"place"`
	CategoryName string `json:"category_name"`
}

// Review is one excerpted customer review.
type Review struct {
	ReviewerName   *string `json:"reviewer_name"`
	StarRatingText *string `json:"star_rating_text"`
	Title          *string `json:"title"`
	Body           *string `json:"body"`
}

// Empty reports whether no field was extracted at all.
func (r *ParsedResult) Empty() bool {
	if r == nil {
		return true
	}
	return r.Rating == nil && r.ReviewsCount == nil && r.RankedPlacements == nil && r.Reviews == nil
}
