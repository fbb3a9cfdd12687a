package learn

import "math"

// Model kinds registered with the codec.
const (
	KindGBTRegressor  = "gbt-regressor"
	KindGBTClassifier = "gbt-classifier"
)

func init() {
	Register(KindGBTRegressor, func() Model { return &gbtRegressor{} })
	Register(KindGBTClassifier, func() Model { return &gbtClassifier{} })
}

type node struct {
	Leaf        bool    `json:"leaf,omitempty"`
	Value       float64 `json:"value,omitempty"`
	Feature     int     `json:"feature,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
	MissingLeft bool    `json:"missingLeft,omitempty"`
	Left        int     `json:"left,omitempty"`
	Right       int     `json:"right,omitempty"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

func (t tree) eval(row []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		var v float64
		if n.Feature < len(row) {
			v = row[n.Feature]
		} else {
			v = math.NaN()
		}
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			if n.MissingLeft {
				i = n.Left
			} else {
				i = n.Right
			}
		case v <= n.Threshold:
			i = n.Left
		default:
			i = n.Right
		}
	}
}

type ensemble struct {
	Base  float64 `json:"base"`
	Trees []tree  `json:"trees"`
}

func (e ensemble) raw(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		v := e.Base
		for _, t := range e.Trees {
			v += t.eval(row)
		}
		out[i] = v
	}
	return out
}

type gbtRegressor struct {
	ensemble
}

func (m *gbtRegressor) Kind() string { return KindGBTRegressor }

func (m *gbtRegressor) Predict(x [][]float64) []float64 {
	return m.raw(x)
}

type gbtClassifier struct {
	ensemble
}

func (m *gbtClassifier) Kind() string { return KindGBTClassifier }

func (m *gbtClassifier) PredictProba(x [][]float64) []float64 {
	out := m.raw(x)
	for i, v := range out {
		out[i] = sigmoid(v)
	}
	return out
}
