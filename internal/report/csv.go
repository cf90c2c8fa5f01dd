package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"firestige.xyz/netanon/internal/core"
)

// CSVSink writes the audit table to a file, replacing any previous content.
type CSVSink struct {
	path string
}

func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Path() string { return s.path }

func (s *CSVSink) Emit(_ context.Context, _ string, records []core.AuditRecord) error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("failed to create audit table %s: %w", s.path, err)
	}
	if err := WriteAuditTable(f, records); err != nil {
		f.Close()
		return fmt.Errorf("failed to write audit table %s: %w", s.path, err)
	}
	return f.Close()
}

func (s *CSVSink) Close() error { return nil }

// WriteAuditTable writes the PrivateIP,PublicIP,ReplacementIP header and one
// row per record in the given order.
func WriteAuditTable(w io.Writer, records []core.AuditRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(core.AuditHeader); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(r.Strings()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
