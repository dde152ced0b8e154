package plumed

import (
	"strings"

	"github.com/san-kum/ljmetad/internal/bias"
	"github.com/san-kum/ljmetad/internal/dynamo"
)

// value is one named quantity produced during an evaluation. grad is nil
// for quantities that cannot be biased.
type value struct {
	v    float64
	grad dynamo.Frame
}

// evaluation carries one step through the action list.
type evaluation struct {
	step   int
	time   float64
	pos    dynamo.Frame
	values map[string]*value
	forces dynamo.Frame
	bias   float64
}

type action interface {
	label() string
	// components lists the full names of the values the action produces,
	// in print order.
	components() []string
	apply(ev *evaluation) error
}

// starter is implemented by actions that validate against the atom count or
// open files once the host is known.
type starter interface {
	start(e *Engine, p bias.InitParams) error
}

type stopper interface {
	stop() error
}

type flusher interface {
	flush() error
}

// registry records component names in definition order so later actions
// can only refer to values computed before them.
type registry struct {
	names []string
	set   map[string]bool
}

func newRegistry() *registry { return &registry{set: map[string]bool{}} }

func (r *registry) add(names ...string) {
	for _, n := range names {
		if !r.set[n] {
			r.set[n] = true
			r.names = append(r.names, n)
		}
	}
}

func (r *registry) has(name string) bool { return r.set[name] }

// expand splits a comma separated ARG list. "label.*" and a bare label
// expand to every component of that label.
func (r *registry) expand(arg string) []string {
	var out []string
	for _, a := range strings.Split(arg, ",") {
		a = strings.TrimSpace(a)
		if r.set[a] {
			out = append(out, a)
			continue
		}
		prefix := strings.TrimSuffix(a, ".*")
		var hit []string
		for _, n := range r.names {
			if strings.HasPrefix(n, prefix+".") {
				hit = append(hit, n)
			}
		}
		if len(hit) == 0 {
			out = append(out, a)
			continue
		}
		out = append(out, hit...)
	}
	return out
}
