// Package regressor evaluates trained model artifacts exported by the
// offline training step. Artifacts are JSON: a linear model is its
// coefficients and intercept, a tree ensemble is the flattened node arrays
// of each tree. Evaluation is total on any correctly shaped feature vector.
package regressor

import (
	"encoding/json"
	"fmt"
	"os"
)

// Estimator is a single trained predictor. Predict must not fail on a
// correctly shaped vector; a malformed shape is a programming error.
type Estimator interface {
	Name() string
	Predict(features []float64) float64
}

type artifact struct {
	Type         string    `json:"type"`
	Name         string    `json:"name"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	Trees        []tree    `json:"trees"`
}

// Load reads a serialized estimator from disk.
func Load(path string) (Estimator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode model artifact %s: %w", path, err)
	}

	switch a.Type {
	case "linear":
		if len(a.Coefficients) == 0 {
			return nil, fmt.Errorf("linear artifact %s has no coefficients", path)
		}
		return &Linear{name: a.Name, Intercept: a.Intercept, Coefficients: a.Coefficients}, nil
	case "forest":
		if len(a.Trees) == 0 {
			return nil, fmt.Errorf("forest artifact %s has no trees", path)
		}
		for i, t := range a.Trees {
			if err := t.validate(); err != nil {
				return nil, fmt.Errorf("forest artifact %s tree %d: %w", path, i, err)
			}
		}
		return &Forest{name: a.Name, Trees: a.Trees}, nil
	default:
		return nil, fmt.Errorf("unknown artifact type %q in %s", a.Type, path)
	}
}

// Linear is a fitted linear regression.
type Linear struct {
	name         string
	Intercept    float64
	Coefficients []float64
}

func (l *Linear) Name() string {
	if l.name != "" {
		return l.name
	}
	return "linear"
}

func (l *Linear) Predict(features []float64) float64 {
	sum := l.Intercept
	for i, c := range l.Coefficients {
		if i >= len(features) {
			break
		}
		sum += c * features[i]
	}
	return sum
}

// Forest is a fitted regression tree ensemble. The prediction is the mean of
// the per-tree predictions.
type Forest struct {
	name  string
	Trees []tree
}

func (f *Forest) Name() string {
	if f.name != "" {
		return f.name
	}
	return "forest"
}

func (f *Forest) Predict(features []float64) float64 {
	var sum float64
	for _, t := range f.Trees {
		sum += t.predict(features)
	}
	return sum / float64(len(f.Trees))
}

// tree is a single decision tree in flattened array form. A node i is a leaf
// when ChildrenLeft[i] < 0.
type tree struct {
	ChildrenLeft  []int     `json:"children_left"`
	ChildrenRight []int     `json:"children_right"`
	Feature       []int     `json:"feature"`
	Threshold     []float64 `json:"threshold"`
	Value         []float64 `json:"value"`
}

func (t *tree) validate() error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("node array lengths differ")
	}
	for i := 0; i < n; i++ {
		if t.ChildrenLeft[i] >= n || t.ChildrenRight[i] >= n {
			return fmt.Errorf("child index out of range at node %d", i)
		}
	}
	return nil
}

func (t *tree) predict(features []float64) float64 {
	node := 0
	// Bounded by node count to guard against cyclic artifacts.
	for steps := 0; steps < len(t.ChildrenLeft); steps++ {
		left := t.ChildrenLeft[node]
		if left < 0 {
			return t.Value[node]
		}
		fi := t.Feature[node]
		var v float64
		if fi >= 0 && fi < len(features) {
			v = features[fi]
		}
		if v <= t.Threshold[node] {
			node = left
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}
