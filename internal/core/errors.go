// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors, wrapped with fmt.Errorf("...: %w") at the call site.
var (
	// Address and subnet errors
	ErrInvalidAddress = errors.New("netanon: invalid address")
	ErrInvalidSubnet  = errors.New("netanon: invalid subnet")
	ErrSubnetTooSmall = errors.New("netanon: subnet has no usable host range")

	// Partition table errors
	ErrPartitionOverlap = errors.New("netanon: private address assigned to more than one partition")

	// Capture errors
	ErrUnsupportedFormat   = errors.New("netanon: unsupported capture format")
	ErrUnsupportedLinkType = errors.New("netanon: unsupported link type")
	ErrPacketTooShort      = errors.New("netanon: packet too short")

	// Generator errors
	ErrInvalidKey = errors.New("netanon: invalid anonymization key")

	// Tabular errors
	ErrMissingColumn = errors.New("netanon: required column missing")
	ErrMalformedRow  = errors.New("netanon: malformed row")

	// Configuration errors
	ErrConfigInvalid = errors.New("netanon: invalid configuration")
)
