package metrics

import (
	"math"

	"github.com/san-kum/ljmetad/internal/dynamo"
)

// Stability is the fraction of steps on which every particle stayed within
// threshold of the cluster centroid. A value below one means the cluster
// lost an atom at some point.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(sample dynamo.Sample) {
	s.samples++
	pos := sample.Positions
	if len(pos) == 0 {
		return
	}
	var c dynamo.Vec3
	for _, p := range pos {
		c = c.Add(p)
	}
	c = c.Scale(1 / float64(len(pos)))
	for _, p := range pos {
		if p.Sub(c).Norm() > s.threshold {
			s.violations++
			break
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// PlaneDeviation is the largest displacement of any particle along normal
// relative to its first observed position. Plane constraints keep it at
// rounding level.
type PlaneDeviation struct {
	name   string
	normal dynamo.Vec3
	ref    []float64
	worst  float64
}

func NewPlaneDeviation(normal dynamo.Vec3) *PlaneDeviation {
	n := normal.Norm()
	if n > 0 {
		normal = normal.Scale(1 / n)
	}
	return &PlaneDeviation{name: "plane_deviation", normal: normal}
}

func (p *PlaneDeviation) Name() string { return p.name }

func (p *PlaneDeviation) Observe(s dynamo.Sample) {
	if p.ref == nil {
		p.ref = make([]float64, len(s.Positions))
		for i, r := range s.Positions {
			p.ref[i] = r.Dot(p.normal)
		}
		return
	}
	for i, r := range s.Positions {
		if i < len(p.ref) {
			p.worst = math.Max(p.worst, math.Abs(r.Dot(p.normal)-p.ref[i]))
		}
	}
}

func (p *PlaneDeviation) Value() float64 { return p.worst }

func (p *PlaneDeviation) Reset() {
	p.ref = nil
	p.worst = 0
}
