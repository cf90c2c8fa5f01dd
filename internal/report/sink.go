// Package report persists audit records produced by an anonymization run.
package report

import (
	"context"
	"errors"

	"firestige.xyz/netanon/internal/core"
)

// Sink receives the audit records of one run after the capture is written.
type Sink interface {
	Name() string
	Emit(ctx context.Context, runID string, records []core.AuditRecord) error
	Close() error
}

// Multi fans records out to several sinks, attempting every one.
type Multi []Sink

func (m Multi) Name() string { return "multi" }

func (m Multi) Emit(ctx context.Context, runID string, records []core.AuditRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, runID, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
