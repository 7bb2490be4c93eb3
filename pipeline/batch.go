package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/kdp-parser/models"
	"github.com/aluiziolira/kdp-parser/scraper"
)

// ErrBatchInProgress is returned by BatchRunner.Start while another batch
// holds the progress flag.
var ErrBatchInProgress = errors.New("pipeline: batch already in progress")

// Catalog is the record store a batch reads from and reports into.
type Catalog interface {
	ListBooks(ctx context.Context) ([]*models.Book, error)
	MarkInProgress(ctx context.Context, id int64) error
	SaveParsed(ctx context.Context, id int64, result *models.ParsedResult, at time.Time) error
	MarkErrored(ctx context.Context, id int64, at time.Time) error
}

// ProgressFlag is a shared "batch running" marker. TryAcquire must be an
// atomic compare-and-set.
type ProgressFlag interface {
	InProgress(ctx context.Context) (bool, error)
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Parser parses one product page. *Orchestrator satisfies it.
type Parser interface {
	Parse(ctx context.Context, url string) (*models.ParsedResult, error)
}

// ParseBook parses a single catalog record and stores the outcome. On failure
// the record is marked errored and its previously parsed fields are kept.
func ParseBook(ctx context.Context, catalog Catalog, p Parser, book *models.Book) *models.Outcome {
	outcome := &models.Outcome{BookID: book.ID, URL: book.URL}

	if err := catalog.MarkInProgress(ctx, book.ID); err != nil {
		slog.Warn("mark in progress failed", slog.Int64("book_id", book.ID), slog.Any("error", err))
	}

	result, err := safeParse(ctx, p, book.URL)
	outcome.At = time.Now()
	if err == nil {
		err = catalog.SaveParsed(ctx, book.ID, result, outcome.At)
		if err != nil {
			err = fmt.Errorf("save parsed record: %w", err)
		}
	}
	if err != nil {
		slog.Error("record parse failed", slog.Int64("book_id", book.ID), slog.String("url", book.URL), slog.Any("error", err))
		if markErr := catalog.MarkErrored(context.WithoutCancel(ctx), book.ID, outcome.At); markErr != nil {
			slog.Warn("mark errored failed", slog.Int64("book_id", book.ID), slog.Any("error", markErr))
		}
		outcome.Status = models.StatusError
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Status = models.StatusCompleted
	outcome.Result = result
	return outcome
}

// safeParse reports a panic inside p as an error.
func safeParse(ctx context.Context, p Parser, url string) (result *models.ParsedResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("parser panic: %v", r)
		}
	}()
	return p.Parse(ctx, url)
}

// BatchSummary counts the records a batch visited.
type BatchSummary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// BatchTask is a handle on a running batch.
type BatchTask struct {
	done    chan struct{}
	summary BatchSummary
	err     error
}

// Done is closed once the batch has finished and released the flag.
func (t *BatchTask) Done() <-chan struct{} {
	return t.done
}

// Running reports whether the batch is still going.
func (t *BatchTask) Running() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the batch ends. The error is non-nil only when the
// catalog could not be listed or ctx was cancelled mid-batch.
func (t *BatchTask) Wait() (BatchSummary, error) {
	<-t.done
	return t.summary, t.err
}

// BatchRunner parses every catalog record in sequence, one batch at a time.
type BatchRunner struct {
	Catalog Catalog
	Flag    ProgressFlag
	Parser  Parser
	// Writer, if set, receives every outcome as it is produced.
	Writer  OutputWriter
	Metrics *scraper.Metrics
}

// Start acquires the progress flag and runs the batch in the background.
func (r *BatchRunner) Start(ctx context.Context) (*BatchTask, error) {
	ok, err := r.Flag.TryAcquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire batch flag: %w", err)
	}
	if !ok {
		return nil, ErrBatchInProgress
	}

	task := &BatchTask{done: make(chan struct{})}
	go r.run(ctx, task)
	return task, nil
}

func (r *BatchRunner) run(ctx context.Context, task *BatchTask) {
	defer close(task.done)
	defer func() {
		if err := r.Flag.Release(context.Background()); err != nil {
			slog.Error("release batch flag failed", slog.Any("error", err))
		}
	}()

	books, err := r.Catalog.ListBooks(ctx)
	if err != nil {
		task.err = fmt.Errorf("list catalog: %w", err)
		slog.Error("batch aborted", slog.Any("error", task.err))
		return
	}
	slog.Info("batch started", slog.Int("records", len(books)))

	for _, book := range books {
		if err := ctx.Err(); err != nil {
			task.err = err
			slog.Warn("batch cancelled", slog.Int("visited", task.summary.Total), slog.Int("records", len(books)))
			break
		}

		outcome := ParseBook(ctx, r.Catalog, r.Parser, book)
		task.summary.Total++
		if outcome.Status == models.StatusCompleted {
			task.summary.Completed++
		} else {
			task.summary.Failed++
		}
		r.Metrics.IncRecord(string(outcome.Status))

		if r.Writer != nil {
			if err := r.Writer.Write([]*models.Outcome{outcome}); err != nil {
				slog.Warn("report write failed", slog.Int64("book_id", book.ID), slog.Any("error", err))
			}
		}
	}

	slog.Info("batch finished",
		slog.Int("total", task.summary.Total),
		slog.Int("completed", task.summary.Completed),
		slog.Int("failed", task.summary.Failed),
	)
}
