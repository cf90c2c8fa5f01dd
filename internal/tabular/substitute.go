package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"

	"firestige.xyz/netanon/internal/config"
	"firestige.xyz/netanon/internal/core"
)

// DefaultChunk is the default number of rows per substitution chunk.
const DefaultChunk = 10000

// Group maps a set of addresses to the address that stands in for their peers.
type Group struct {
	Name       string
	Substitute string
	Addresses  []string
}

// GroupsFromConfig converts configured substitution groups.
func GroupsFromConfig(subs []config.SubstitutionConfig) []Group {
	groups := make([]Group, 0, len(subs))
	for _, s := range subs {
		groups = append(groups, Group{Name: s.Name, Substitute: s.Substitute, Addresses: s.Addresses})
	}
	return groups
}

// Substitute streams a metadata table: when SourceIP belongs to a group its
// DestinationIP becomes the group's substitute, then, on the updated row,
// when DestinationIP belongs to a group its SourceIP becomes the substitute.
// Other columns are copied. Rows are processed chunk at a time; the header
// is written once. It returns the number of data rows.
func Substitute(in io.Reader, out io.Writer, groups []Group, chunk int) (int, error) {
	if chunk <= 0 {
		chunk = DefaultChunk
	}
	lookup := make(map[string]string)
	for _, g := range groups {
		for _, a := range g.Addresses {
			lookup[a] = g.Substitute
		}
	}

	r, err := newReader(in, core.ColSourceIP, core.ColDestinationIP)
	if err != nil {
		return 0, err
	}
	si, di := r.col(core.ColSourceIP), r.col(core.ColDestinationIP)

	cw := csv.NewWriter(out)
	if err := cw.Write(r.head); err != nil {
		return 0, err
	}

	total, chunks := 0, 0
	buf := make([][]string, 0, chunk)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		if err := cw.WriteAll(buf); err != nil {
			return fmt.Errorf("writing chunk %d: %w", chunks+1, err)
		}
		chunks++
		total += len(buf)
		slog.Info("processed chunk", "chunk", chunks, "rows", total)
		buf = buf[:0]
		return nil
	}

	for {
		row, err := r.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, err
		}
		if sub, ok := lookup[row[si]]; ok {
			row[di] = sub
		}
		if sub, ok := lookup[row[di]]; ok {
			row[si] = sub
		}
		buf = append(buf, row)
		if len(buf) == chunk {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	cw.Flush()
	return total, cw.Error()
}
