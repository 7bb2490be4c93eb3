package models

import (
	"regexp"
	"time"
)

// ParseStatus is the processing state of a catalog record.
type ParseStatus string

const (
	StatusNotParsed  ParseStatus = "not parsed"
	StatusInProgress ParseStatus = "in progress"
	StatusCompleted  ParseStatus = "completed"
	StatusError      ParseStatus = "error"
)

// Language is the storefront language a record was registered with.
type Language string

const (
	LanguageEnglish    Language = "en"
	LanguageGerman     Language = "de"
	LanguageFrench     Language = "fr"
	LanguageItalian    Language = "it"
	LanguageSpanish    Language = "es"
	LanguagePortuguese Language = "pt"
	LanguageMexican    Language = "mx"
	LanguageDutch      Language = "nl"
	LanguageRussian    Language = "ru"
	LanguageJapanese   Language = "ja"
)

var languages = map[Language]struct{}{
	LanguageEnglish: {}, LanguageGerman: {}, LanguageFrench: {}, LanguageItalian: {},
	LanguageSpanish: {}, LanguagePortuguese: {}, LanguageMexican: {}, LanguageDutch: {},
	LanguageRussian: {}, LanguageJapanese: {},
}

// Valid reports whether l is one of the supported storefront languages.
func (l Language) Valid() bool {
	_, ok := languages[l]
	return ok
}

// Book is a catalog record as seen by the parse pipeline.
type Book struct {
	ID             int64             `json:"id"`
	Name           string            `json:"name"`
	URL            string            `json:"url"`
	Language       Language          `json:"language"`
	Series         string            `json:"series,omitempty"`
	Rating         *float64          `json:"rating"`
	ReviewsCount   *int              `json:"reviews_count"`
	BestSellerRank []RankedPlacement `json:"best_seller_ranks"`
	PopularReviews []Review          `json:"popular_reviews"`
	ParseStatus    ParseStatus       `json:"parse_status"`
	ParsedAt       *time.Time        `json:"parsed_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Outcome records the result of one parse attempt against a catalog record.
type Outcome struct {
	BookID int64         `json:"book_id"`
	URL    string        `json:"url"`
	Status ParseStatus   `json:"status"`
	Result *ParsedResult `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
	At     time.Time     `json:"at"`
}

var asinPattern = regexp.MustCompile(`/dp/([A-Z0-9]+)`)

// ASIN returns the product identifier embedded in a detail page URL, or "".
func ASIN(url string) string {
	m := asinPattern.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}
