// Package memory is an in-process journal used for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"ledger/internal/core"
	ports "ledger/internal/sheets"
)

type Journal struct {
	mu   sync.Mutex
	rows []core.JournalRow
}

var _ ports.JournalWriter = (*Journal)(nil)

func New() *Journal {
	return &Journal{}
}

// AppendJournal stores the row and returns a synthetic row reference.
func (j *Journal) AppendJournal(_ context.Context, row core.JournalRow) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.rows = append(j.rows, row)
	return fmt.Sprintf("mem:%d", len(j.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (j *Journal) Rows() []core.JournalRow {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]core.JournalRow(nil), j.rows...)
}
