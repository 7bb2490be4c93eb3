package parser

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/kdp-parser/models"
)

const bestSellersLabel = "Best Sellers Rank:"

// rankList finds the list that follows the detail bullets under the
// "Product details" heading.
func rankList(doc *goquery.Document) *goquery.Selection {
	heading := doc.Find("h2").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return normalizeSpace(s.Text()) == "Product details"
	}).First()
	if heading.Length() == 0 {
		return heading
	}
	bullets := heading.NextAllFiltered("#detailBullets_feature_div").First()
	if bullets.Length() == 0 {
		return bullets
	}
	return bullets.NextAllFiltered("ul").First()
}

func extractRankedPlacements(doc *goquery.Document) ([]models.RankedPlacement, error) {
	list := rankList(doc)
	if list.Length() == 0 {
		return nil, missing(FieldRankedPlacements, "product details list")
	}

	label := list.Find("span.a-text-bold").First()
	if label.Length() == 0 {
		return nil, missing(FieldRankedPlacements, "rank label")
	}
	if text := normalizeSpace(label.Text()); text != bestSellersLabel {
		return nil, &FieldError{Field: FieldRankedPlacements, Reason: "unexpected label " + text}
	}

	placements := []models.RankedPlacement{ParseRank(nextSiblingText(label))}
	list.Find("ul.zg_hrsr").First().Find("li").Each(func(_ int, item *goquery.Selection) {
		placements = append(placements, ParseRank(item.Text()))
	})
	return placements, nil
}
