package store

import (
	"context"
	"fmt"
)

const batchFlagName = "batch_in_progress"

// Flag is a boolean row in the flags table. Because it lives in the database
// file, every process sharing the catalog sees the same value.
type Flag struct {
	store *Store
	name  string
}

// BatchFlag returns the flag guarding catalog-wide parse batches.
func (s *Store) BatchFlag() *Flag {
	return &Flag{store: s, name: batchFlagName}
}

// InProgress reports whether the flag is set.
func (f *Flag) InProgress(ctx context.Context) (bool, error) {
	var value int
	err := f.store.db.QueryRowContext(ctx, `SELECT value FROM flags WHERE name = ?`, f.name).Scan(&value)
	if err != nil {
		return false, fmt.Errorf("read flag %s: %w", f.name, err)
	}
	return value != 0, nil
}

// TryAcquire sets the flag if it is clear. It returns false without error
// when another holder already set it.
func (f *Flag) TryAcquire(ctx context.Context) (bool, error) {
	res, err := f.store.db.ExecContext(ctx, `UPDATE flags SET value = 1 WHERE name = ? AND value = 0`, f.name)
	if err != nil {
		return false, fmt.Errorf("acquire flag %s: %w", f.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire flag %s: %w", f.name, err)
	}
	return n == 1, nil
}

// Release clears the flag unconditionally.
func (f *Flag) Release(ctx context.Context) error {
	if _, err := f.store.db.ExecContext(ctx, `UPDATE flags SET value = 0 WHERE name = ?`, f.name); err != nil {
		return fmt.Errorf("release flag %s: %w", f.name, err)
	}
	return nil
}
