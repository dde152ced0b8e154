package plumed

import (
	"fmt"
	"strconv"
	"strings"
)

// Directive is one parsed input line.
type Directive struct {
	Label string
	Name  string
	Line  int

	keys  map[string]string
	flags map[string]bool
	order []string
}

// Parse splits directive lines into actions. Comments start with '#',
// "..." continues an action over several lines and ENDPLUMED stops parsing.
func Parse(lines []string) ([]*Directive, error) {
	var (
		out     []*Directive
		pending []string
		start   int
		auto    int
	)
	for i, raw := range lines {
		line := raw
		if k := strings.IndexByte(line, '#'); k >= 0 {
			line = line[:k]
		}
		line = strings.TrimSpace(line)
		if pending != nil {
			if strings.HasPrefix(line, "...") {
				line = strings.Join(pending, " ")
				pending = nil
			} else {
				if line != "" {
					pending = append(pending, line)
				}
				continue
			}
		} else {
			start = i + 1
			if strings.HasSuffix(line, "...") {
				pending = []string{strings.TrimSpace(strings.TrimSuffix(line, "..."))}
				continue
			}
		}
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "ENDPLUMED") {
			break
		}

		d, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", start, err)
		}
		d.Line = start
		if d.Label == "" {
			d.Label = "@" + strconv.Itoa(auto)
		}
		auto++
		out = append(out, d)
	}
	if pending != nil {
		return nil, fmt.Errorf("line %d: unterminated continuation", start)
	}
	return out, nil
}

func parseLine(line string) (*Directive, error) {
	toks, err := tokenize(line)
	if err != nil {
		return nil, err
	}
	d := &Directive{keys: map[string]string{}, flags: map[string]bool{}}
	if strings.HasSuffix(toks[0], ":") {
		d.Label = strings.TrimSuffix(toks[0], ":")
		toks = toks[1:]
		if d.Label == "" || len(toks) == 0 {
			return nil, fmt.Errorf("malformed label in %q", line)
		}
	}
	d.Name = strings.ToUpper(toks[0])
	for _, t := range toks[1:] {
		k, v, ok := strings.Cut(t, "=")
		if !ok {
			d.flags[strings.ToUpper(t)] = true
			d.order = append(d.order, strings.ToUpper(t))
			continue
		}
		k = strings.ToUpper(k)
		if k == "LABEL" {
			d.Label = v
			continue
		}
		if _, dup := d.keys[k]; dup {
			return nil, fmt.Errorf("%s: keyword %s given twice", d.Name, k)
		}
		d.keys[k] = strings.TrimSuffix(strings.TrimPrefix(v, "{"), "}")
		d.order = append(d.order, k)
	}
	return d, nil
}

// tokenize splits on blanks, keeping {...} groups in one token.
func tokenize(line string) ([]string, error) {
	var (
		toks  []string
		cur   strings.Builder
		depth int
	)
	for _, r := range line {
		switch {
		case r == '{':
			depth++
			cur.WriteRune(r)
		case r == '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced braces in %q", line)
			}
			cur.WriteRune(r)
		case (r == ' ' || r == '\t') && depth == 0:
			if cur.Len() > 0 {
				toks = append(toks, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced braces in %q", line)
	}
	if cur.Len() > 0 {
		toks = append(toks, cur.String())
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("empty directive")
	}
	return toks, nil
}

// take removes and returns a keyword value.
func (d *Directive) take(key string) (string, bool) {
	v, ok := d.keys[key]
	delete(d.keys, key)
	return v, ok
}

func (d *Directive) flag(name string) bool {
	v := d.flags[name]
	delete(d.flags, name)
	return v
}

func (d *Directive) required(key string) (string, error) {
	v, ok := d.take(key)
	if !ok || v == "" {
		return "", fmt.Errorf("%s %s: missing %s", d.Name, d.Label, key)
	}
	return v, nil
}

func (d *Directive) float(key string, def float64) (float64, error) {
	v, ok := d.take(key)
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %s: bad %s=%q", d.Name, d.Label, key, v)
	}
	return f, nil
}

func (d *Directive) int(key string, def int) (int, error) {
	v, ok := d.take(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s %s: bad %s=%q", d.Name, d.Label, key, v)
	}
	return n, nil
}

func (d *Directive) floats(key string) ([]float64, error) {
	v, err := d.required(key)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(v, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		out[i], err = strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%s %s: bad %s entry %q", d.Name, d.Label, key, p)
		}
	}
	return out, nil
}

// done reports keywords nobody consumed.
func (d *Directive) done() error {
	for _, k := range d.order {
		if _, ok := d.keys[k]; ok {
			return fmt.Errorf("%s %s: unknown keyword %s", d.Name, d.Label, k)
		}
		if d.flags[k] {
			return fmt.Errorf("%s %s: unknown flag %s", d.Name, d.Label, k)
		}
	}
	return nil
}

// parseRange reads "a-b" or "a" (1-based, inclusive).
func parseRange(v string) (lo, hi int, err error) {
	a, b, ok := strings.Cut(v, "-")
	lo, err = strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, 0, fmt.Errorf("bad range %q", v)
	}
	hi = lo
	if ok {
		hi, err = strconv.Atoi(strings.TrimSpace(b))
		if err != nil {
			return 0, 0, fmt.Errorf("bad range %q", v)
		}
	}
	if lo < 1 || hi < lo {
		return 0, 0, fmt.Errorf("bad range %q", v)
	}
	return lo, hi, nil
}

// parseList reads comma separated ranges such as "1-3,5".
func parseList(v string) ([]int, error) {
	var out []int
	for _, p := range strings.Split(v, ",") {
		lo, hi, err := parseRange(p)
		if err != nil {
			return nil, err
		}
		for i := lo; i <= hi; i++ {
			out = append(out, i)
		}
	}
	return out, nil
}
