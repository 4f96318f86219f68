package classifier

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

type Options struct {
	Trees    int
	MaxDepth int
	MinLeaf  int
	Seed     int64
}

func DefaultOptions() Options {
	return Options{Trees: 100, MaxDepth: 10, MinLeaf: 1, Seed: 42}
}

// node is a flattened tree node; Left < 0 marks a leaf.
type node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Prob      float64 `json:"p"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

func (t tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Left < 0 {
			return n.Prob
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Forest is a bagged ensemble of CART trees scored by mean leaf probability.
type Forest struct {
	Features []string `json:"features"`
	Trees    []tree   `json:"trees"`
}

// Train fits a forest. Each split considers a random subset of sqrt(features).
func Train(samples []Sample, opts Options) (*Forest, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no training samples")
	}
	if opts.Trees <= 0 {
		opts.Trees = DefaultOptions().Trees
	}
	if opts.MinLeaf <= 0 {
		opts.MinLeaf = 1
	}
	rnd := rand.New(rand.NewSource(opts.Seed))
	nFeatures := len(samples[0].X)
	tryFeatures := int(math.Max(1, math.Round(math.Sqrt(float64(nFeatures)))))

	f := &Forest{Features: append([]string{}, FeatureNames...), Trees: make([]tree, 0, opts.Trees)}
	for i := 0; i < opts.Trees; i++ {
		boot := make([]Sample, len(samples))
		for j := range boot {
			boot[j] = samples[rnd.Intn(len(samples))]
		}
		b := &builder{opts: opts, rnd: rnd, try: tryFeatures, nFeatures: nFeatures}
		b.grow(boot, 0)
		f.Trees = append(f.Trees, tree{Nodes: b.nodes})
	}
	return f, nil
}

type builder struct {
	opts      Options
	rnd       *rand.Rand
	try       int
	nFeatures int
	nodes     []node
}

func positives(samples []Sample) int {
	n := 0
	for _, s := range samples {
		n += s.Y
	}
	return n
}

func (b *builder) leaf(samples []Sample) int {
	b.nodes = append(b.nodes, node{Left: -1, Right: -1, Prob: float64(positives(samples)) / float64(len(samples))})
	return len(b.nodes) - 1
}

func (b *builder) grow(samples []Sample, depth int) int {
	pos := positives(samples)
	if pos == 0 || pos == len(samples) || len(samples) < 2*b.opts.MinLeaf ||
		(b.opts.MaxDepth > 0 && depth >= b.opts.MaxDepth) {
		return b.leaf(samples)
	}

	feature, threshold, ok := b.bestSplit(samples)
	if !ok {
		return b.leaf(samples)
	}
	var left, right []Sample
	for _, s := range samples {
		if s.X[feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	idx := len(b.nodes)
	b.nodes = append(b.nodes, node{Feature: feature, Threshold: threshold})
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[idx].Left = l
	b.nodes[idx].Right = r
	return idx
}

func gini(pos, total int) float64 {
	if total == 0 {
		return 0
	}
	p := float64(pos) / float64(total)
	return 2 * p * (1 - p)
}

func (b *builder) bestSplit(samples []Sample) (int, float64, bool) {
	n := len(samples)
	totalPos := positives(samples)
	best := gini(totalPos, n)
	bestFeature, bestThreshold, found := -1, 0.0, false

	sorted := make([]Sample, n)
	for _, feature := range b.rnd.Perm(b.nFeatures)[:b.try] {
		copy(sorted, samples)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].X[feature] < sorted[j].X[feature] })

		leftPos := 0
		for i := 1; i < n; i++ {
			leftPos += sorted[i-1].Y
			if sorted[i].X[feature] == sorted[i-1].X[feature] {
				continue
			}
			if i < b.opts.MinLeaf || n-i < b.opts.MinLeaf {
				continue
			}
			score := (float64(i)*gini(leftPos, i) + float64(n-i)*gini(totalPos-leftPos, n-i)) / float64(n)
			if score < best {
				best = score
				bestFeature = feature
				bestThreshold = (sorted[i].X[feature] + sorted[i-1].X[feature]) / 2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

// Probability is the mean positive-class leaf fraction over all trees.
func (f *Forest) Probability(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	votes := make([]float64, len(f.Trees))
	for i, t := range f.Trees {
		votes[i] = t.predict(x)
	}
	return stat.Mean(votes, nil)
}

func (f *Forest) Predict(age, durationWeeks int, sev Severity) (Prediction, error) {
	x, err := Features(age, durationWeeks, sev)
	if err != nil {
		return Prediction{}, err
	}
	p := f.Probability(x)
	label := 0
	if p >= 0.5 {
		label = 1
	}
	return Prediction{Label: label, Probability: p}, nil
}

func (f *Forest) Save(w io.Writer) error {
	return json.NewEncoder(w).Encode(f)
}

func Load(r io.Reader) (*Forest, error) {
	var f Forest
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("model has no trees")
	}
	if len(f.Features) != len(FeatureNames) {
		return nil, fmt.Errorf("model has %d features, want %d", len(f.Features), len(FeatureNames))
	}
	for i, t := range f.Trees {
		if err := t.validate(len(f.Features)); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return &f, nil
}

// validate checks that predict cannot index out of range or loop.
// Children always come after their parent, as grow emits them.
func (t tree) validate(nFeatures int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("no nodes")
	}
	for i, n := range t.Nodes {
		if n.Left < 0 {
			if math.IsNaN(n.Prob) || n.Prob < 0 || n.Prob > 1 {
				return fmt.Errorf("node %d: leaf probability %v out of range", i, n.Prob)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= nFeatures {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: child index out of range", i)
		}
	}
	return nil
}
