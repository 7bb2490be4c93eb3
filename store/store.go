// Package store persists the book catalog and the batch progress flag in a
// SQLite database shared by every process pointed at the same file.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/aluiziolira/kdp-parser/models"
)

var (
	// ErrNotFound is returned when no book has the requested id.
	ErrNotFound = errors.New("store: book not found")
	// ErrDuplicateURL is returned by AddBook when the URL is already catalogued.
	ErrDuplicateURL = errors.New("store: url already in catalog")
)

const busyTimeoutMillis = 5000

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	url TEXT NOT NULL UNIQUE,
	language TEXT NOT NULL,
	series TEXT NOT NULL DEFAULT '',
	rating REAL,
	reviews_count INTEGER,
	best_seller_ranks TEXT,
	popular_reviews TEXT,
	parse_status TEXT NOT NULL DEFAULT 'not parsed',
	parsed_at TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS flags (
	name TEXT PRIMARY KEY,
	value INTEGER NOT NULL DEFAULT 0
);
`

// Store is the SQLite-backed catalog.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, busyTimeoutMillis)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO flags (name, value) VALUES (?, 0)`, batchFlagName); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed flags: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddBook inserts a new catalog record and fills in its id and timestamps.
func (s *Store) AddBook(ctx context.Context, book *models.Book) error {
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO books (name, url, language, series, parse_status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		book.Name, book.URL, string(book.Language), book.Series, string(models.StatusNotParsed),
		formatTime(now), formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateURL, book.URL)
		}
		return fmt.Errorf("insert book: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read book id: %w", err)
	}
	book.ID = id
	book.ParseStatus = models.StatusNotParsed
	book.CreatedAt = now
	book.UpdatedAt = now
	return nil
}

const selectBook = `SELECT id, name, url, language, series, rating, reviews_count,
	best_seller_ranks, popular_reviews, parse_status, parsed_at, created_at, updated_at
	FROM books`

// GetBook loads one record.
func (s *Store) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	row := s.db.QueryRowContext(ctx, selectBook+` WHERE id = ?`, id)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return book, nil
}

// ListBooks returns every record ordered by id.
func (s *Store) ListBooks(ctx context.Context) ([]*models.Book, error) {
	rows, err := s.db.QueryContext(ctx, selectBook+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var books []*models.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return books, nil
}

// MarkInProgress sets the record's status to "in progress".
func (s *Store) MarkInProgress(ctx context.Context, id int64) error {
	return s.exec(ctx, id,
		`UPDATE books SET parse_status = ?, updated_at = ? WHERE id = ?`,
		string(models.StatusInProgress), formatTime(s.now().UTC()), id,
	)
}

// SaveParsed stores result and marks the record completed. Absent fields are
// written as NULL, replacing earlier values.
func (s *Store) SaveParsed(ctx context.Context, id int64, result *models.ParsedResult, at time.Time) error {
	if result == nil {
		result = &models.ParsedResult{}
	}
	ranks, err := marshalNullable(result.RankedPlacements)
	if err != nil {
		return fmt.Errorf("encode ranked placements: %w", err)
	}
	reviews, err := marshalNullable(result.Reviews)
	if err != nil {
		return fmt.Errorf("encode reviews: %w", err)
	}

	var rating sql.NullFloat64
	if result.Rating != nil {
		rating = sql.NullFloat64{Float64: *result.Rating, Valid: true}
	}
	var count sql.NullInt64
	if result.ReviewsCount != nil {
		count = sql.NullInt64{Int64: int64(*result.ReviewsCount), Valid: true}
	}

	return s.exec(ctx, id,
		`UPDATE books SET rating = ?, reviews_count = ?, best_seller_ranks = ?, popular_reviews = ?,
		 parse_status = ?, parsed_at = ?, updated_at = ? WHERE id = ?`,
		rating, count, ranks, reviews,
		string(models.StatusCompleted), formatTime(at.UTC()), formatTime(s.now().UTC()), id,
	)
}

// MarkErrored sets the record's status to "error" and leaves parsed fields alone.
func (s *Store) MarkErrored(ctx context.Context, id int64, at time.Time) error {
	return s.exec(ctx, id,
		`UPDATE books SET parse_status = ?, parsed_at = ?, updated_at = ? WHERE id = ?`,
		string(models.StatusError), formatTime(at.UTC()), formatTime(s.now().UTC()), id,
	)
}

func (s *Store) exec(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update book %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update book %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBook(row scanner) (*models.Book, error) {
	var (
		book               models.Book
		language, status   string
		rating             sql.NullFloat64
		count              sql.NullInt64
		ranks, reviews     sql.NullString
		parsedAt           sql.NullString
		createdAt, updated string
	)
	err := row.Scan(&book.ID, &book.Name, &book.URL, &language, &book.Series, &rating, &count,
		&ranks, &reviews, &status, &parsedAt, &createdAt, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan book: %w", err)
	}

	book.Language = models.Language(language)
	book.ParseStatus = models.ParseStatus(status)
	if rating.Valid {
		book.Rating = &rating.Float64
	}
	if count.Valid {
		n := int(count.Int64)
		book.ReviewsCount = &n
	}
	if ranks.Valid {
		if err := json.Unmarshal([]byte(ranks.String), &book.BestSellerRank); err != nil {
			return nil, fmt.Errorf("decode ranked placements for book %d: %w", book.ID, err)
		}
	}
	if reviews.Valid {
		if err := json.Unmarshal([]byte(reviews.String), &book.PopularReviews); err != nil {
			return nil, fmt.Errorf("decode reviews for book %d: %w", book.ID, err)
		}
	}
	if parsedAt.Valid {
		t, err := parseTime(parsedAt.String)
		if err != nil {
			return nil, err
		}
		book.ParsedAt = &t
	}
	if book.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if book.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &book, nil
}

func marshalNullable[T any](items []T) (sql.NullString, error) {
	if items == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code&0xff == sqlite3.SQLITE_CONSTRAINT
}
