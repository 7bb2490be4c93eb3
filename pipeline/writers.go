package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/kdp-parser/models"
)

// OutputWriter receives batch outcomes for a report.
type OutputWriter interface {
	Write(outcomes []*models.Outcome) error
	Close() error
	Validate() error
}

var csvHeader = []string{"book_id", "url", "status", "rating", "reviews_count", "best_sellers_rank", "reviews", "error", "at"}

// CSVWriter writes one row per outcome.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
	}, nil
}

// Write appends outcomes to the CSV output.
func (cw *CSVWriter) Write(outcomes []*models.Outcome) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, outcome := range outcomes {
		if err := cw.writer.Write(csvRecord(outcome)); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

func csvRecord(o *models.Outcome) []string {
	record := []string{
		strconv.FormatInt(o.BookID, 10),
		o.URL,
		string(o.Status),
		"", "", "", "",
		o.Error,
		o.At.Format(time.RFC3339),
	}
	if r := o.Result; r != nil {
		if r.Rating != nil {
			record[3] = strconv.FormatFloat(*r.Rating, 'f', -1, 64)
		}
		if r.ReviewsCount != nil {
			record[4] = strconv.Itoa(*r.ReviewsCount)
		}
		record[5] = formatPlacements(r.RankedPlacements)
		record[6] = strconv.Itoa(len(r.Reviews))
	}
	return record
}

// formatPlacements renders placements as "#12 in Poetry; #3 in Drama".
func formatPlacements(placements []models.RankedPlacement) string {
	parts := make([]string, 0, len(placements))
	for _, p := range placements {
		if p.Place == nil {
			parts = append(parts, p.CategoryName)
			continue
		}
		parts = append(parts, fmt.Sprintf("#%d %s", *p.Place, p.CategoryName))
	}
	return strings.Join(parts, "; ")
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content besides the header.
func (cw *CSVWriter) Validate() error {
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// JSONWriter writes newline-delimited JSON outcomes.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &JSONWriter{
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// Write appends outcomes in JSONL format.
func (jw *JSONWriter) Write(outcomes []*models.Outcome) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, outcome := range outcomes {
		if err := jw.encoder.Encode(outcome); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	info, err := jw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

// NewReportWriter opens a writer for format ("csv", "json" or "both"). With
// "both", path is used as a base name for a .csv and a .jsonl file.
func NewReportWriter(path, format string) (OutputWriter, error) {
	switch format {
	case "csv":
		return NewCSVWriter(path)
	case "json", "jsonl":
		return NewJSONWriter(path)
	case "both":
		base := strings.TrimSuffix(path, filepath.Ext(path))
		return NewDualWriter(base+".csv", base+".jsonl")
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
