package parser

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/kdp-parser/models"
)

// reviewContainers are searched in order; items from every match are kept.
var reviewContainers = []string{"#cm-cr-dp-review-list", "#cm-cr-global-review-list"}

var (
	titleStrategies = []strategy{
		afterLetterSpace,
		textOf("span.cr-translated-review-content"),
	}
	bodyStrategies = []strategy{
		textOf(`span[data-hook="review-body"] .cr-original-review-content`),
		firstTextChild(`span[data-hook="review-body"] div[data-hook="review-collapsed"]`, "span"),
	}
)

func afterLetterSpace(sel *goquery.Selection) (string, bool) {
	return nonEmpty(sel.Find("span.a-letter-space").First().NextAllFiltered("span").First())
}

func extractReviews(doc *goquery.Document) ([]models.Review, error) {
	var reviews []models.Review
	for _, id := range reviewContainers {
		doc.Find(id).First().Find("li").Each(func(_ int, item *goquery.Selection) {
			reviews = append(reviews, models.Review{
				ReviewerName:   firstOf(item, textOf("span.a-profile-name")),
				StarRatingText: firstOf(item, textOf("span.a-icon-alt")),
				Title:          firstOf(item, titleStrategies...),
				Body:           firstOf(item, bodyStrategies...),
			})
		})
	}
	return reviews, nil
}
