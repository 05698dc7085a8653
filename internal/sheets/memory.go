package sheets

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Client with the same row semantics as the Google
// implementation. Tests and offline runs use it in place of the real API.
type Memory struct {
	mu     sync.Mutex
	sheets map[string]*memSheet
}

type memSheet struct {
	header []string
	rows   [][]string
}

func NewMemory() *Memory {
	return &Memory{sheets: make(map[string]*memSheet)}
}

func (m *Memory) Sheet(title string) Worksheet {
	return &memWorksheet{m: m, title: title}
}

func (m *Memory) EnsureSheets(_ context.Context, headers map[string][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for title, header := range headers {
		if _, ok := m.sheets[title]; !ok {
			m.sheets[title] = &memSheet{header: append([]string(nil), header...)}
		}
	}
	return nil
}

func (m *Memory) sheet(title string) (*memSheet, error) {
	s, ok := m.sheets[title]
	if !ok {
		return nil, fmt.Errorf("worksheet %q not found", title)
	}
	return s, nil
}

// Snapshot returns a copy of a worksheet's data rows, for assertions.
func (m *Memory) Snapshot(title string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sheets[title]
	if !ok {
		return nil
	}
	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

type memWorksheet struct {
	m     *Memory
	title string
}

func (w *memWorksheet) Rows(_ context.Context) ([][]string, error) {
	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	s, err := w.m.sheet(w.title)
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (w *memWorksheet) FindRow(_ context.Context, key string) (int, error) {
	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	s, err := w.m.sheet(w.title)
	if err != nil {
		return 0, err
	}
	for i, r := range s.rows {
		if len(r) > 0 && r[0] == key {
			return i + 2, nil
		}
	}
	return 0, nil
}

func (w *memWorksheet) UpdateRow(_ context.Context, row int, values []string) error {
	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	s, err := w.m.sheet(w.title)
	if err != nil {
		return err
	}
	i := row - 2
	if i < 0 || i >= len(s.rows) {
		return fmt.Errorf("%s: row %d out of range", w.title, row)
	}
	s.rows[i] = append([]string(nil), values...)
	return nil
}

func (w *memWorksheet) AppendRow(_ context.Context, values []string) error {
	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	s, err := w.m.sheet(w.title)
	if err != nil {
		return err
	}
	s.rows = append(s.rows, append([]string(nil), values...))
	return nil
}

func (w *memWorksheet) DeleteRow(_ context.Context, row int) error {
	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	s, err := w.m.sheet(w.title)
	if err != nil {
		return err
	}
	i := row - 2
	if i < 0 || i >= len(s.rows) {
		return fmt.Errorf("%s: row %d out of range", w.title, row)
	}
	s.rows = append(s.rows[:i], s.rows[i+1:]...)
	return nil
}
