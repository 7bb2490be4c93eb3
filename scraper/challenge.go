package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// challengeMarker is the captcha input rendered only on the block page.
const challengeMarker = "#captchacharacters"

// Inspection is what the ChallengeDetector learned about a document.
type Inspection struct {
	IsChallenge bool
	Title       *string
}

// ChallengeDetector recognises block pages and extracts a short title used
// to name snapshots.
type ChallengeDetector struct {
	TitlePrefixLen int
}

// NewChallengeDetector returns a detector truncating titles to prefixLen runes.
func NewChallengeDetector(prefixLen int) ChallengeDetector {
	if prefixLen <= 0 {
		prefixLen = 20
	}
	return ChallengeDetector{TitlePrefixLen: prefixLen}
}

// Inspect never fails; a nil document is treated as a page with no title.
func (d ChallengeDetector) Inspect(doc *goquery.Document) Inspection {
	if doc == nil {
		return Inspection{}
	}
	return Inspection{
		IsChallenge: doc.Find(challengeMarker).Length() > 0,
		Title:       d.title(doc),
	}
}

// InspectHTML parses body and inspects it.
func (d ChallengeDetector) InspectHTML(body string) Inspection {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return Inspection{}
	}
	return d.Inspect(doc)
}

func (d ChallengeDetector) title(doc *goquery.Document) *string {
	sel := doc.Find("title").First()
	if sel.Length() == 0 {
		return nil
	}
	title := strings.TrimSpace(sel.Text())
	if runes := []rune(title); len(runes) > d.TitlePrefixLen {
		title = strings.TrimSpace(string(runes[:d.TitlePrefixLen]))
	}
	if title == "" {
		return nil
	}
	return &title
}
