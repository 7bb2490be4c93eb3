package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aluiziolira/kdp-parser/models"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", "catalog.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func addTestBook(t *testing.T, s *Store, url string) *models.Book {
	t.Helper()
	book := &models.Book{Name: "The Quiet Garden", URL: url, Language: models.LanguageEnglish, Series: "Seasons"}
	if err := s.AddBook(context.Background(), book); err != nil {
		t.Fatalf("add book: %v", err)
	}
	return book
}

func TestAddAndGetBook(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	book := addTestBook(t, s, "https://www.amazon.com/dp/B0QUIET123?language=en_GB")
	if book.ID == 0 {
		t.Fatal("id not assigned")
	}

	got, err := s.GetBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != book.Name || got.URL != book.URL || got.Language != models.LanguageEnglish || got.Series != "Seasons" {
		t.Fatalf("got %+v", got)
	}
	if got.ParseStatus != models.StatusNotParsed {
		t.Fatalf("status = %q", got.ParseStatus)
	}
	if got.Rating != nil || got.ReviewsCount != nil || got.BestSellerRank != nil || got.ParsedAt != nil {
		t.Fatalf("unparsed book has parsed fields: %+v", got)
	}
}

func TestAddBookDuplicateURL(t *testing.T) {
	s, _ := openTestStore(t)
	url := "https://www.amazon.com/dp/B0QUIET123?language=en_GB"
	addTestBook(t, s, url)

	err := s.AddBook(context.Background(), &models.Book{Name: "Again", URL: url, Language: models.LanguageEnglish})
	if !errors.Is(err, ErrDuplicateURL) {
		t.Fatalf("err = %v, want ErrDuplicateURL", err)
	}
}

func TestGetBookNotFound(t *testing.T) {
	s, _ := openTestStore(t)
	if _, err := s.GetBook(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := s.MarkInProgress(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("mark err = %v, want ErrNotFound", err)
	}
}

func TestSaveParsedThenMarkErrored(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	book := addTestBook(t, s, "https://www.amazon.com/dp/B0QUIET123?language=en_GB")

	if err := s.MarkInProgress(ctx, book.ID); err != nil {
		t.Fatalf("mark in progress: %v", err)
	}
	if got, _ := s.GetBook(ctx, book.ID); got.ParseStatus != models.StatusInProgress {
		t.Fatalf("status = %q", got.ParseStatus)
	}

	rating := 4.6
	count := 12345
	place := 1234
	name := "Jane"
	parsedAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	result := &models.ParsedResult{
		Rating:           &rating,
		ReviewsCount:     &count,
		RankedPlacements: []models.RankedPlacement{{Place: &place, CategoryName: "in Kindle Store"}, {CategoryName: "Unranked"}},
		Reviews:          []models.Review{{ReviewerName: &name}},
	}
	if err := s.SaveParsed(ctx, book.ID, result, parsedAt); err != nil {
		t.Fatalf("save parsed: %v", err)
	}

	got, err := s.GetBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ParseStatus != models.StatusCompleted || got.ParsedAt == nil || !got.ParsedAt.Equal(parsedAt) {
		t.Fatalf("status=%q parsed_at=%v", got.ParseStatus, got.ParsedAt)
	}
	if got.Rating == nil || *got.Rating != 4.6 || got.ReviewsCount == nil || *got.ReviewsCount != 12345 {
		t.Fatalf("rating=%v count=%v", got.Rating, got.ReviewsCount)
	}
	if len(got.BestSellerRank) != 2 || *got.BestSellerRank[0].Place != 1234 || got.BestSellerRank[1].Place != nil {
		t.Fatalf("ranks = %+v", got.BestSellerRank)
	}
	if len(got.PopularReviews) != 1 || *got.PopularReviews[0].ReviewerName != "Jane" || got.PopularReviews[0].Body != nil {
		t.Fatalf("reviews = %+v", got.PopularReviews)
	}

	erroredAt := parsedAt.Add(time.Hour)
	if err := s.MarkErrored(ctx, book.ID, erroredAt); err != nil {
		t.Fatalf("mark errored: %v", err)
	}
	got, err = s.GetBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ParseStatus != models.StatusError || !got.ParsedAt.Equal(erroredAt) {
		t.Fatalf("status=%q parsed_at=%v", got.ParseStatus, got.ParsedAt)
	}
	if got.Rating == nil || *got.Rating != 4.6 || len(got.BestSellerRank) != 2 {
		t.Fatal("error status discarded previously parsed fields")
	}
}

func TestListBooksOrdered(t *testing.T) {
	s, _ := openTestStore(t)
	for _, asin := range []string{"B0AAAAAAA1", "B0AAAAAAA2", "B0AAAAAAA3"} {
		addTestBook(t, s, "https://www.amazon.com/dp/"+asin+"?language=en_GB")
	}

	books, err := s.ListBooks(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(books) != 3 {
		t.Fatalf("books = %d", len(books))
	}
	for i := 1; i < len(books); i++ {
		if books[i-1].ID >= books[i].ID {
			t.Fatalf("not ordered by id: %d then %d", books[i-1].ID, books[i].ID)
		}
	}
}

func TestBatchFlagCompareAndSet(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	flag := s.BatchFlag()

	if held, err := flag.InProgress(ctx); err != nil || held {
		t.Fatalf("initial held=%v err=%v", held, err)
	}
	ok, err := flag.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire ok=%v err=%v", ok, err)
	}
	ok, err = flag.TryAcquire(ctx)
	if err != nil || ok {
		t.Fatalf("second acquire ok=%v err=%v, want refused", ok, err)
	}
	if held, _ := flag.InProgress(ctx); !held {
		t.Fatal("flag not visible as held")
	}
	if err := flag.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := flag.TryAcquire(ctx); !ok {
		t.Fatal("acquire after release refused")
	}
}

func TestBatchFlagSharedAcrossConnections(t *testing.T) {
	first, path := openTestStore(t)
	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	ctx := context.Background()

	if ok, err := first.BatchFlag().TryAcquire(ctx); err != nil || !ok {
		t.Fatalf("acquire ok=%v err=%v", ok, err)
	}
	if held, err := second.BatchFlag().InProgress(ctx); err != nil || !held {
		t.Fatalf("second handle held=%v err=%v", held, err)
	}
	if ok, _ := second.BatchFlag().TryAcquire(ctx); ok {
		t.Fatal("second handle acquired a held flag")
	}
	if err := second.BatchFlag().Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if held, _ := first.BatchFlag().InProgress(ctx); held {
		t.Fatal("release not visible to first handle")
	}
}
