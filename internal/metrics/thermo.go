package metrics

import "github.com/san-kum/ljmetad/internal/dynamo"

// ThermoRow is one line of the thermodynamic log.
type ThermoRow struct {
	Step        int     `json:"step"`
	Time        float64 `json:"time"`
	Potential   float64 `json:"potential"`
	Kinetic     float64 `json:"kinetic"`
	Total       float64 `json:"total"`
	Temperature float64 `json:"temperature"`
}

// Thermo is an observer keeping a ThermoRow every Every steps.
type Thermo struct {
	Every int
	Rows  []ThermoRow
}

func NewThermo(every int) *Thermo {
	if every <= 0 {
		every = 1
	}
	return &Thermo{Every: every}
}

func (t *Thermo) OnStep(s dynamo.Sample) {
	if s.Step%t.Every != 0 {
		return
	}
	t.Rows = append(t.Rows, ThermoRow{
		Step:        s.Step,
		Time:        s.Time,
		Potential:   s.Potential,
		Kinetic:     s.Kinetic,
		Total:       s.Total(),
		Temperature: s.Temperature,
	})
}

// Series extracts one column for plotting or spectral analysis.
func (t *Thermo) Series(pick func(ThermoRow) float64) []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = pick(r)
	}
	return out
}
