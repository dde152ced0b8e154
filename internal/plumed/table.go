package plumed

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/san-kum/ljmetad/internal/dynamo"
)

// Table is a whitespace-delimited file with a "#! FIELDS" header.
type Table struct {
	Fields []string
	Rows   [][]float64
}

// ReadTable reads a COLVAR, HILLS or grid file. Blank lines and other
// comment lines are skipped.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}
	defer f.Close()
	t, err := ParseTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func ParseTable(r io.Reader) (*Table, error) {
	t := &Table{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if rest, ok := strings.CutPrefix(line, "#! FIELDS"); ok {
				t.Fields = strings.Fields(rest)
			}
			continue
		}
		parts := strings.Fields(line)
		row := make([]float64, len(parts))
		for i, p := range parts {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: bad number %q", dynamo.ErrIO, n, p)
			}
			row[i] = v
		}
		if t.Fields != nil && len(row) != len(t.Fields) {
			return nil, fmt.Errorf("%w: line %d: %d columns, header has %d", dynamo.ErrIO, n, len(row), len(t.Fields))
		}
		t.Rows = append(t.Rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}
	return t, nil
}

// Index returns the column of a field or -1.
func (t *Table) Index(field string) int {
	for i, f := range t.Fields {
		if f == field {
			return i
		}
	}
	return -1
}

// Column returns a copy of column i.
func (t *Table) Column(i int) []float64 {
	out := make([]float64, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// HillsCVs returns the CV names of a HILLS header, in column order.
func (t *Table) HillsCVs() []string {
	var cvs []string
	for _, f := range t.Fields {
		if name, ok := strings.CutPrefix(f, "sigma_"); ok {
			cvs = append(cvs, name)
		}
	}
	return cvs
}

// ReadHills reads a HILLS deposit log. Heights are returned as written.
func ReadHills(path string) ([]Hill, []string, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, nil, err
	}
	cvs := t.HillsCVs()
	if len(cvs) == 0 {
		return nil, nil, fmt.Errorf("%w: %s: no sigma_ columns in header", dynamo.ErrIO, path)
	}
	k := len(cvs)
	ih, ib := t.Index("height"), t.Index("biasf")
	if ih < 0 {
		return nil, nil, fmt.Errorf("%w: %s: no height column", dynamo.ErrIO, path)
	}
	hills := make([]Hill, len(t.Rows))
	for r, row := range t.Rows {
		h := Hill{
			Time:       row[0],
			Center:     append([]float64(nil), row[1:1+k]...),
			Sigma:      append([]float64(nil), row[1+k:1+2*k]...),
			Height:     row[ih],
			BiasFactor: 1,
		}
		if ib >= 0 {
			h.BiasFactor = row[ib]
		}
		hills[r] = h
	}
	return hills, cvs, nil
}
