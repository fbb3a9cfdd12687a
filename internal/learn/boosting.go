package learn

import (
	"math"
	"sort"
)

// Params configures Boosting.
type Params struct {
	Rounds       int     `yaml:"rounds" json:"rounds"`
	MaxDepth     int     `yaml:"max_depth" json:"maxDepth"`
	LearningRate float64 `yaml:"learning_rate" json:"learningRate"`
	MinLeaf      int     `yaml:"min_leaf" json:"minLeaf"`
	MaxBins      int     `yaml:"max_bins" json:"maxBins"`
	L2           float64 `yaml:"l2" json:"l2"`
}

// DefaultParams returns the parameters used when none are configured.
func DefaultParams() Params {
	return Params{
		Rounds:       100,
		MaxDepth:     6,
		LearningRate: 0.1,
		MinLeaf:      20,
		MaxBins:      255,
		L2:           1.0,
	}
}

// withDefaults replaces non-positive fields with their default.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Rounds <= 0 {
		p.Rounds = d.Rounds
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = d.MaxDepth
	}
	if p.LearningRate <= 0 {
		p.LearningRate = d.LearningRate
	}
	if p.MinLeaf <= 0 {
		p.MinLeaf = d.MinLeaf
	}
	if p.MaxBins < 2 {
		p.MaxBins = d.MaxBins
	}
	if p.L2 < 0 {
		p.L2 = d.L2
	}
	return p
}

// Boosting fits histogram gradient-boosted regression trees. Regressors use
// squared loss, classifiers logistic loss. Missing cells are routed to
// whichever side of a split gains more.
type Boosting struct {
	Params Params
}

// NewBoosting returns a Boosting learner.
func NewBoosting(p Params) *Boosting {
	return &Boosting{Params: p.withDefaults()}
}

// FitRegressor implements Learner.
func (b *Boosting) FitRegressor(x [][]float64, y []float64) (Regressor, error) {
	if _, err := checkShape(x, len(y)); err != nil {
		return nil, err
	}
	var base float64
	for _, v := range y {
		base += v
	}
	base /= float64(len(y))

	e := b.fit(x, base, func(raw []float64, grad, hess []float64) {
		for i := range raw {
			grad[i] = raw[i] - y[i]
			hess[i] = 1
		}
	})
	return &gbtRegressor{ensemble: e}, nil
}

// FitClassifier implements Learner.
func (b *Boosting) FitClassifier(x [][]float64, y []int) (Classifier, error) {
	if _, err := checkShape(x, len(y)); err != nil {
		return nil, err
	}
	pos := 0
	for _, v := range y {
		if v != 0 {
			pos++
		}
	}
	if pos == 0 || pos == len(y) {
		return nil, ErrSingleClass
	}
	p := float64(pos) / float64(len(y))
	base := math.Log(p / (1 - p))

	e := b.fit(x, base, func(raw []float64, grad, hess []float64) {
		for i := range raw {
			prob := sigmoid(raw[i])
			target := 0.0
			if y[i] != 0 {
				target = 1
			}
			grad[i] = prob - target
			hess[i] = math.Max(prob*(1-prob), 1e-6)
		}
	})
	return &gbtClassifier{ensemble: e}, nil
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}

type lossFunc func(raw []float64, grad, hess []float64)

func (b *Boosting) fit(x [][]float64, base float64, loss lossFunc) ensemble {
	p := b.Params.withDefaults()
	n := len(x)
	cuts, bins := binMatrix(x, p.MaxBins)

	raw := make([]float64, n)
	for i := range raw {
		raw[i] = base
	}
	grad := make([]float64, n)
	hess := make([]float64, n)
	rows := make([]int, n)

	e := ensemble{Base: base}
	for round := 0; round < p.Rounds; round++ {
		loss(raw, grad, hess)
		for i := range rows {
			rows[i] = i
		}
		g := &grower{p: p, cuts: cuts, bins: bins, grad: grad, hess: hess}
		g.grow(rows, 0)
		if len(g.nodes) == 1 && g.nodes[0].Value == 0 {
			break
		}
		t := tree{Nodes: g.nodes}
		for i := range raw {
			raw[i] += t.eval(x[i])
		}
		e.Trees = append(e.Trees, t)
	}
	return e
}

// binMatrix computes per-feature cut points and the bin of every cell,
// feature-major. Missing cells get bin -1.
func binMatrix(x [][]float64, maxBins int) ([][]float64, [][]int32) {
	width := len(x[0])
	cuts := make([][]float64, width)
	bins := make([][]int32, width)
	vals := make([]float64, 0, len(x))
	for f := 0; f < width; f++ {
		vals = vals[:0]
		for _, row := range x {
			if v := row[f]; !math.IsNaN(v) && !math.IsInf(v, 0) {
				vals = append(vals, v)
			}
		}
		cuts[f] = cutPoints(vals, maxBins)
		col := make([]int32, len(x))
		for i, row := range x {
			v := row[f]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				col[i] = -1
				continue
			}
			col[i] = int32(sort.SearchFloat64s(cuts[f], v))
		}
		bins[f] = col
	}
	return cuts, bins
}

// cutPoints returns ascending thresholds such that "v <= cuts[b]" separates
// bin b from b+1. vals is sorted in place.
func cutPoints(vals []float64, maxBins int) []float64 {
	if len(vals) == 0 {
		return nil
	}
	sort.Float64s(vals)
	var uniq []float64
	for i, v := range vals {
		if i == 0 || v != vals[i-1] {
			uniq = append(uniq, v)
		}
	}
	if len(uniq) <= maxBins {
		return uniq[:len(uniq)-1]
	}
	var cuts []float64
	for q := 1; q < maxBins; q++ {
		v := vals[q*len(vals)/maxBins]
		if v == vals[len(vals)-1] {
			break
		}
		if len(cuts) == 0 || v > cuts[len(cuts)-1] {
			cuts = append(cuts, v)
		}
	}
	return cuts
}

type grower struct {
	p     Params
	cuts  [][]float64
	bins  [][]int32
	grad  []float64
	hess  []float64
	nodes []node
}

type split struct {
	gain        float64
	feature     int
	bin         int
	missingLeft bool
}

func (g *grower) leafValue(sumG, sumH float64) float64 {
	return -g.p.LearningRate * sumG / (sumH + g.p.L2)
}

func (g *grower) score(sumG, sumH float64) float64 {
	return sumG * sumG / (sumH + g.p.L2)
}

// grow appends the subtree for rows and returns its node index.
func (g *grower) grow(rows []int, depth int) int {
	var sumG, sumH float64
	for _, i := range rows {
		sumG += g.grad[i]
		sumH += g.hess[i]
	}
	idx := len(g.nodes)
	g.nodes = append(g.nodes, node{Leaf: true, Value: g.leafValue(sumG, sumH)})

	if depth >= g.p.MaxDepth || len(rows) < 2*g.p.MinLeaf {
		return idx
	}
	best, ok := g.bestSplit(rows, sumG, sumH)
	if !ok {
		return idx
	}

	var left, right []int
	col := g.bins[best.feature]
	for _, i := range rows {
		b := col[i]
		if (b < 0 && best.missingLeft) || (b >= 0 && int(b) <= best.bin) {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	threshold := math.MaxFloat64
	if cuts := g.cuts[best.feature]; best.bin < len(cuts) {
		threshold = cuts[best.bin]
	}
	g.nodes[idx] = node{
		Feature:     best.feature,
		Threshold:   threshold,
		MissingLeft: best.missingLeft,
		Left:        l,
		Right:       r,
	}
	return idx
}

func (g *grower) bestSplit(rows []int, sumG, sumH float64) (split, bool) {
	parent := g.score(sumG, sumH)
	best := split{gain: 1e-9}
	found := false

	for f := range g.bins {
		nb := len(g.cuts[f]) + 1
		histG := make([]float64, nb)
		histH := make([]float64, nb)
		histN := make([]int, nb)
		var missG, missH float64
		missN := 0
		col := g.bins[f]
		for _, i := range rows {
			b := col[i]
			if b < 0 {
				missG += g.grad[i]
				missH += g.hess[i]
				missN++
				continue
			}
			histG[b] += g.grad[i]
			histH[b] += g.hess[i]
			histN[b]++
		}

		// b == nb-1 separates present from missing values.
		var lG, lH float64
		lN := 0
		for b := 0; b < nb; b++ {
			lG += histG[b]
			lH += histH[b]
			lN += histN[b]
			for _, missingLeft := range []bool{false, true} {
				if b == nb-1 && (missingLeft || missN == 0) {
					continue
				}
				gl, hl, nl := lG, lH, lN
				if missingLeft {
					gl, hl, nl = gl+missG, hl+missH, nl+missN
				}
				nr := len(rows) - nl
				if nl < g.p.MinLeaf || nr < g.p.MinLeaf {
					continue
				}
				gain := g.score(gl, hl) + g.score(sumG-gl, sumH-hl) - parent
				if gain > best.gain {
					best = split{gain: gain, feature: f, bin: b, missingLeft: missingLeft}
					found = true
				}
			}
		}
	}
	return best, found
}
