// Package core defines core data structures shared by the capture, anonymization
// and tabular packages.
package core

import (
	"net/netip"

	"github.com/google/gopacket"
)

// Record is one captured frame as read from or written to a capture file.
// Data is never modified in place: a rewrite produces a new Record with a
// fresh buffer.
type Record struct {
	Info gopacket.CaptureInfo
	Data []byte
}

// WithData returns a copy of r carrying data, with the capture length
// adjusted to match.
func (r Record) WithData(data []byte) Record {
	info := r.Info
	info.CaptureLength = len(data)
	if info.Length < len(data) {
		info.Length = len(data)
	}
	return Record{Info: info, Data: data}
}

// AuditRecord associates a private peer with the original public address it
// talked to and the synthetic address that replaced it.
type AuditRecord struct {
	Private     netip.Addr
	Public      netip.Addr
	Replacement netip.Addr
}

// Strings returns the record as an audit table row.
func (a AuditRecord) Strings() []string {
	return []string{a.Private.String(), a.Public.String(), a.Replacement.String()}
}
