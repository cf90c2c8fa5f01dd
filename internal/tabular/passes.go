package tabular

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"firestige.xyz/netanon/internal/core"
)

var associationHeader = []string{
	core.ColSourceIP, core.ColDestinationIP, core.ColSourcePort, core.ColDestPort, core.ColPacketCount,
}

type association struct {
	key   [4]string
	count int
}

// Associations counts packets per (SourceIP, DestinationIP, SourcePort,
// DestinationPort) and writes them by descending count, ties in order of
// first appearance. It returns the number of associations.
func Associations(in io.Reader, out io.Writer) (int, error) {
	r, err := newReader(in, core.ColSourceIP, core.ColDestinationIP, core.ColSourcePort, core.ColDestPort)
	if err != nil {
		return 0, err
	}
	si, di, sp, dp := r.col(core.ColSourceIP), r.col(core.ColDestinationIP), r.col(core.ColSourcePort), r.col(core.ColDestPort)

	index := make(map[[4]string]int)
	var assocs []association
	for {
		row, err := r.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		key := [4]string{row[si], row[di], row[sp], row[dp]}
		if i, ok := index[key]; ok {
			assocs[i].count++
			continue
		}
		index[key] = len(assocs)
		assocs = append(assocs, association{key: key, count: 1})
	}

	sort.SliceStable(assocs, func(a, b int) bool { return assocs[a].count > assocs[b].count })

	rows := make([][]string, 0, len(assocs))
	for _, a := range assocs {
		rows = append(rows, []string{a.key[0], a.key[1], a.key[2], a.key[3], strconv.Itoa(a.count)})
	}
	return len(rows), writeTable(out, associationHeader, rows)
}

// UniquePorts writes the sorted distinct DestinationPort values. When sources
// is not empty only rows whose SourceIP is listed count. Empty ports are skipped.
func UniquePorts(in io.Reader, out io.Writer, sources []string) (int, error) {
	r, err := newReader(in, core.ColSourceIP, core.ColDestPort)
	if err != nil {
		return 0, err
	}
	si, dp := r.col(core.ColSourceIP), r.col(core.ColDestPort)
	filter := stringSet(sources)

	seen := make(map[uint64]struct{})
	for {
		row, err := r.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		if filter != nil {
			if _, ok := filter[row[si]]; !ok {
				continue
			}
		}
		field := strings.TrimSpace(row[dp])
		if field == "" {
			continue
		}
		port, err := parsePort(field)
		if err != nil {
			return 0, fmt.Errorf("%w: line %d: %s %q", core.ErrMalformedRow, r.line, core.ColDestPort, field)
		}
		seen[port] = struct{}{}
	}

	ports := make([]uint64, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Slice(ports, func(a, b int) bool { return ports[a] < ports[b] })

	rows := make([][]string, 0, len(ports))
	for _, p := range ports {
		rows = append(rows, []string{strconv.FormatUint(p, 10)})
	}
	return len(rows), writeTable(out, []string{core.ColUniquePorts}, rows)
}

// parsePort accepts integers and the "443.0" form float columns are written in.
func parsePort(s string) (uint64, error) {
	if p, err := strconv.ParseUint(s, 10, 16); err == nil {
		return p, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 65535 || f != float64(uint64(f)) {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return uint64(f), nil
}

// DestinationIPs writes the distinct DestinationIP values contacted by the
// given sources, in first-seen order. No sources means every row counts.
func DestinationIPs(in io.Reader, out io.Writer, sources []string) (int, error) {
	r, err := newReader(in, core.ColSourceIP, core.ColDestinationIP)
	if err != nil {
		return 0, err
	}
	si, di := r.col(core.ColSourceIP), r.col(core.ColDestinationIP)
	filter := stringSet(sources)

	seen := make(map[string]struct{})
	var rows [][]string
	for {
		row, err := r.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		if filter != nil {
			if _, ok := filter[row[si]]; !ok {
				continue
			}
		}
		dst := row[di]
		if _, dup := seen[dst]; dup || dst == "" {
			continue
		}
		seen[dst] = struct{}{}
		rows = append(rows, []string{dst})
	}
	return len(rows), writeTable(out, []string{core.ColDestinationIP}, rows)
}
