package parser

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/aluiziolira/kdp-parser/models"
)

// groupedDigits matches the first number, including thousands separators.
var groupedDigits = regexp.MustCompile(`\d+(?:[,.]\d{3})*`)

// ParseRating parses the leading decimal of a rating text such as "4.5" or
// "4,5 out of 5 stars".
func ParseRating(text string) (float64, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty rating text")
	}
	token := fields[0]
	if strings.Contains(token, ",") && !strings.Contains(token, ".") {
		token = strings.Replace(token, ",", ".", 1)
	}
	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, fmt.Errorf("parse rating %q: %w", text, err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0, fmt.Errorf("rating %q is out of range", text)
	}
	return value, nil
}

// ParseCount parses the first whitespace-delimited token of text as an
// integer after removing thousands separators: "12,345 ratings" is 12345.
func ParseCount(text string) (int, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty count text")
	}
	token := stripSeparators(fields[0])
	value, err := strconv.Atoi(token)
	if err != nil {
		return 0, fmt.Errorf("parse count %q: %w", text, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("count %q is negative", text)
	}
	return value, nil
}

// ParseRank splits a rank text such as "#1,234 in Books (" into the first
// number and the category that surrounds it. Text without digits becomes the
// category with no place.
func ParseRank(text string) models.RankedPlacement {
	text = normalizeSpace(text)
	loc := groupedDigits.FindStringIndex(text)
	if loc == nil {
		return models.RankedPlacement{CategoryName: text}
	}

	var place *int
	if n, err := strconv.Atoi(stripSeparators(text[loc[0]:loc[1]])); err == nil {
		place = &n
	}

	name := text[:loc[0]] + text[loc[1]:]
	name = strings.ReplaceAll(name, "#", "")
	name = normalizeSpace(name)
	name = strings.TrimSpace(strings.TrimRight(name, "( "))
	return models.RankedPlacement{Place: place, CategoryName: name}
}

func stripSeparators(s string) string {
	return strings.NewReplacer(",", "", ".", "").Replace(s)
}

// normalizeSpace collapses runs of whitespace and trims the ends.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
