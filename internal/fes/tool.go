package fes

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/san-kum/ljmetad/internal/dynamo"
)

// PlumedTool runs `plumed sum_hills` and waits for it to finish.
type PlumedTool struct {
	Binary string
	Logger *slog.Logger
}

func (PlumedTool) Name() string { return "plumed" }

// Args is the exact argument list passed to the binary.
func (p PlumedTool) Args(req Request) []string {
	args := []string{
		"sum_hills",
		"--hills", req.Hills,
		"--outfile", req.Outfile,
		"--bin", joinInts(req.Bins),
		"--min", joinFloats(req.Min),
		"--max", joinFloats(req.Max),
	}
	if req.MinToZero {
		args = append(args, "--mintozero")
	}
	return args
}

func (p PlumedTool) Reconstruct(ctx context.Context, req Request) (*Grid, error) {
	if _, err := validate(req); err != nil {
		return nil, err
	}
	bin := p.Binary
	if bin == "" {
		bin = "plumed"
	}
	cmd := exec.CommandContext(ctx, bin, p.Args(req)...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if p.Logger != nil {
		p.Logger.Info("running reconstruction tool", "cmd", cmd.String())
	}
	if err := cmd.Run(); err != nil {
		return nil, &dynamo.StageError{Stage: "fes", Step: -1,
			Wrapped: fmt.Errorf("%w: %s: %v: %s", dynamo.ErrExternalEngine, bin, err, strings.TrimSpace(out.String()))}
	}
	return ReadGrid(req.Outfile, req)
}

// Auto picks the plumed binary when it is on PATH and the in-process
// reconstruction otherwise.
func Auto(binary string, log *slog.Logger) Reconstructor {
	if binary == "" {
		binary = "plumed"
	}
	if path, err := exec.LookPath(binary); err == nil {
		return PlumedTool{Binary: path, Logger: log}
	}
	return SumHills{Logger: log}
}

func joinInts(v []int) string {
	s := make([]string, len(v))
	for i, x := range v {
		s[i] = strconv.Itoa(x)
	}
	return strings.Join(s, ",")
}

func joinFloats(v []float64) string {
	s := make([]string, len(v))
	for i, x := range v {
		s[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return strings.Join(s, ",")
}
