package parser

import (
	"github.com/PuerkitoBio/goquery"
)

const (
	reviewsContainer  = "#detailBullets_averageCustomerReviews"
	ratingSelector    = "span.a-size-base.a-color-base"
	reviewsCountLabel = "#acrCustomerReviewText"
)

func customerReviews(doc *goquery.Document, field string) (*goquery.Selection, error) {
	container := doc.Find(reviewsContainer).First()
	if container.Length() == 0 {
		return nil, missing(field, "customer reviews block")
	}
	return container, nil
}

func extractRating(doc *goquery.Document) (*float64, error) {
	container, err := customerReviews(doc, FieldRating)
	if err != nil {
		return nil, err
	}
	text, ok := nonEmpty(container.Find(ratingSelector).First())
	if !ok {
		return nil, missing(FieldRating, "rating span")
	}
	rating, err := ParseRating(text)
	if err != nil {
		return nil, err
	}
	return &rating, nil
}

func extractReviewsCount(doc *goquery.Document) (*int, error) {
	container, err := customerReviews(doc, FieldReviewsCount)
	if err != nil {
		return nil, err
	}
	text, ok := nonEmpty(container.Find(reviewsCountLabel).First())
	if !ok {
		return nil, missing(FieldReviewsCount, "reviews count span")
	}
	count, err := ParseCount(text)
	if err != nil {
		return nil, err
	}
	return &count, nil
}
