package plumed

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/san-kum/ljmetad/internal/dynamo"
)

// ReadDirectives reads a directive file line by line.
func ReadDirectives(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: directive file: %v", dynamo.ErrConfiguration, err)
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}
	return lines, nil
}

// SetPrintStride returns a copy of lines with the STRIDE of every PRINT
// action replaced by stride. Continued actions come back joined on one line.
func SetPrintStride(lines []string, stride int) []string {
	lines = joinContinuations(lines)
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = line
		body, comment, _ := strings.Cut(line, "#")
		if strings.HasSuffix(strings.TrimSpace(body), "...") {
			continue
		}
		toks, err := tokenize(body)
		if err != nil {
			continue
		}
		at := 0
		if strings.HasSuffix(toks[0], ":") {
			at = 1
		}
		if at >= len(toks) || !strings.EqualFold(toks[at], "PRINT") {
			continue
		}
		kept := toks[:0:0]
		for _, t := range toks {
			if k, _, ok := strings.Cut(t, "="); ok && strings.EqualFold(k, "STRIDE") {
				continue
			}
			kept = append(kept, t)
		}
		kept = append(kept, "STRIDE="+strconv.Itoa(stride))
		out[i] = strings.Join(kept, " ")
		if comment != "" {
			out[i] += " #" + comment
		}
	}
	return out
}

// joinContinuations folds every "..." block into a single line, dropping
// comments inside the block. An unterminated block is left as written.
func joinContinuations(lines []string) []string {
	var (
		out     []string
		pending []string
		raw     []string
	)
	for _, line := range lines {
		body, _, _ := strings.Cut(line, "#")
		body = strings.TrimSpace(body)
		if pending == nil {
			if !strings.HasSuffix(body, "...") {
				out = append(out, line)
				continue
			}
			pending = []string{strings.TrimSpace(strings.TrimSuffix(body, "..."))}
			raw = []string{line}
			continue
		}
		if strings.HasPrefix(body, "...") {
			out = append(out, strings.Join(pending, " "))
			pending, raw = nil, nil
			continue
		}
		raw = append(raw, line)
		if body != "" {
			pending = append(pending, body)
		}
	}
	return append(out, raw...)
}
