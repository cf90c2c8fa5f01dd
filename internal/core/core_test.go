package core

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"
)

func TestRecordWithData(t *testing.T) {
	t.Run("AdjustsCaptureLength", func(t *testing.T) {
		now := time.Now()
		rec := Record{
			Info: gopacket.CaptureInfo{Timestamp: now, CaptureLength: 3, Length: 100},
			Data: []byte{0x01, 0x02, 0x03},
		}

		out := rec.WithData([]byte{0x0a, 0x0b, 0x0c, 0x0d})
		if out.Info.CaptureLength != 4 {
			t.Errorf("expected CaptureLength=4, got %d", out.Info.CaptureLength)
		}
		if out.Info.Length != 100 {
			t.Errorf("expected Length=100, got %d", out.Info.Length)
		}
		if !out.Info.Timestamp.Equal(now) {
			t.Errorf("timestamp mismatch")
		}
		if rec.Data[0] != 0x01 {
			t.Errorf("source record was modified")
		}
	})

	t.Run("GrowsOriginalLength", func(t *testing.T) {
		rec := Record{Info: gopacket.CaptureInfo{CaptureLength: 2, Length: 2}, Data: []byte{1, 2}}
		out := rec.WithData([]byte{1, 2, 3})
		if out.Info.Length != 3 {
			t.Errorf("expected Length=3, got %d", out.Info.Length)
		}
	})
}

func TestAuditRecordStrings(t *testing.T) {
	rec := AuditRecord{
		Private:     netip.MustParseAddr("192.168.0.2"),
		Public:      netip.MustParseAddr("8.8.8.8"),
		Replacement: netip.MustParseAddr("10.1.4.7"),
	}

	row := rec.Strings()
	want := []string{"192.168.0.2", "8.8.8.8", "10.1.4.7"}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("column %d: expected %s, got %s", i, want[i], row[i])
		}
	}

	// Records are comparable so they can key a set.
	set := map[AuditRecord]struct{}{rec: {}}
	if _, ok := set[rec]; !ok {
		t.Error("expected record to be found in set")
	}
}

func TestProtocolName(t *testing.T) {
	tests := []struct {
		proto uint8
		name  string
	}{
		{1, "ICMP"},
		{6, "TCP"},
		{17, "UDP"},
		{27, "RDP"},
		{132, "SCTP"},
		{47, "Unknown"},
		{0, "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProtocolName(tt.proto); got != tt.name {
				t.Errorf("ProtocolName(%d) = %s, expected %s", tt.proto, got, tt.name)
			}
		})
	}
}

func TestSentinelErrors(t *testing.T) {
	t.Run("ErrorMessages", func(t *testing.T) {
		tests := []struct {
			err     error
			message string
		}{
			{ErrInvalidAddress, "netanon: invalid address"},
			{ErrInvalidSubnet, "netanon: invalid subnet"},
			{ErrPartitionOverlap, "netanon: private address assigned to more than one partition"},
			{ErrMissingColumn, "netanon: required column missing"},
			{ErrConfigInvalid, "netanon: invalid configuration"},
		}

		for _, tt := range tests {
			if tt.err.Error() != tt.message {
				t.Errorf("expected error message %q, got %q", tt.message, tt.err.Error())
			}
		}
	})

	t.Run("ErrorWrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("partition %q: %w", "CHESS", ErrPartitionOverlap)
		if !errors.Is(wrapped, ErrPartitionOverlap) {
			t.Error("errors.Is failed for wrapped error")
		}
	})
}

func TestHeaders(t *testing.T) {
	if len(AuditHeader) != 3 || AuditHeader[0] != "PrivateIP" || AuditHeader[2] != "ReplacementIP" {
		t.Errorf("unexpected audit header %v", AuditHeader)
	}
	if got := strings.Join(PayloadHeader, ","); got != "No,Length,Payload" {
		t.Errorf("unexpected payload header %s", got)
	}
	if len(MetadataHeader) != 10 {
		t.Errorf("expected 10 metadata columns, got %d", len(MetadataHeader))
	}
}
