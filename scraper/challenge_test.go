package scraper

import (
	"testing"
)

func TestChallengeDetectorInspect(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		challenge bool
		title     string
	}{
		{
			name:      "captcha page",
			html:      `<html><head><title>Amazon.com</title></head><body><form><input id="captchacharacters" name="field-keywords"></form></body></html>`,
			challenge: true,
			title:     "Amazon.com",
		},
		{
			name:  "product page title truncated",
			html:  `<html><head><title>  Amazon.com: The Long Way Home: A Novel  </title></head><body></body></html>`,
			title: "Amazon.com: The Long",
		},
		{
			name:  "truncation trims trailing space",
			html:  `<html><head><title>Amazon.co.uk: Dragon Tales</title></head></html>`,
			title: "Amazon.co.uk: Dragon",
		},
		{
			name: "no title",
			html: `<html><body><p>nothing</p></body></html>`,
		},
		{
			name: "blank title",
			html: `<html><head><title>   </title></head></html>`,
		},
	}

	detector := NewChallengeDetector(20)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detector.InspectHTML(tt.html)
			if got.IsChallenge != tt.challenge {
				t.Fatalf("IsChallenge = %v, want %v", got.IsChallenge, tt.challenge)
			}
			if tt.title == "" {
				if got.Title != nil {
					t.Fatalf("Title = %q, want nil", *got.Title)
				}
				return
			}
			if got.Title == nil || *got.Title != tt.title {
				t.Fatalf("Title = %v, want %q", got.Title, tt.title)
			}
		})
	}
}

func TestChallengeDetectorNilDocument(t *testing.T) {
	got := NewChallengeDetector(0).Inspect(nil)
	if got.IsChallenge || got.Title != nil {
		t.Fatalf("nil document should yield an empty inspection, got %+v", got)
	}
}

func TestChallengeDetectorMultibyteTitle(t *testing.T) {
	got := NewChallengeDetector(5).InspectHTML(`<title>Überraschungsbuch</title>`)
	if got.Title == nil || *got.Title != "Überr" {
		t.Fatalf("Title = %v, want rune-safe prefix", got.Title)
	}
}
