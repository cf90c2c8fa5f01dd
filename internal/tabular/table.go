// Package tabular implements the CSV passes run over extracted metadata
// tables: association counts, port and destination inventories, and
// group-based address substitution.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"firestige.xyz/netanon/internal/core"
)

// reader wraps a csv.Reader with the column index of its header row.
type reader struct {
	cr   *csv.Reader
	head []string
	cols map[string]int
	line int
}

func newReader(in io.Reader, required ...string) (*reader, error) {
	cr := csv.NewReader(in)
	cr.ReuseRecord = false
	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty table", core.ErrMissingColumn)
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	r := &reader{cr: cr, head: head, cols: make(map[string]int, len(head)), line: 1}
	for i, name := range head {
		if _, dup := r.cols[name]; !dup {
			r.cols[name] = i
		}
	}
	for _, name := range required {
		if _, ok := r.cols[name]; !ok {
			return nil, fmt.Errorf("%w: %s", core.ErrMissingColumn, name)
		}
	}
	return r, nil
}

// next returns the next row, or io.EOF.
func (r *reader) next() ([]string, error) {
	row, err := r.cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedRow, err)
	}
	r.line++
	return row, nil
}

func (r *reader) col(name string) int { return r.cols[name] }

// writeTable writes header and rows and flushes.
func writeTable(out io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func stringSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	s := make(map[string]struct{}, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}
