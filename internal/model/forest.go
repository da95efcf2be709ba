package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/climate-forecast-service/internal/models"
)

// Regressor maps a feature vector to the four climate targets.
// Implementations must be safe for concurrent use.
type Regressor interface {
	Predict(x models.FeatureVector) (models.TargetVector, error)
}

var (
	// ErrInvalidArtifact is returned when a model file cannot be used.
	ErrInvalidArtifact = errors.New("invalid model artifact")
	// ErrInference is returned when a prediction cannot be produced.
	ErrInference = errors.New("inference failed")
)

// leafChild marks both children of a leaf node, as in sklearn's tree_ arrays.
const leafChild = -1

var validate = validator.New()

// TargetMetrics holds held-out evaluation scores recorded at training time.
type TargetMetrics struct {
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
}

// Info describes a loaded model.
type Info struct {
	Kind      string
	Trees     int
	Nodes     int
	TrainedAt time.Time
	Metrics   map[string]TargetMetrics
}

type artifact struct {
	Version   int                      `json:"version" validate:"eq=1"`
	Kind      string                   `json:"kind" validate:"eq=random_forest"`
	Features  []string                 `json:"features" validate:"len=4,dive,required"`
	Targets   []string                 `json:"targets" validate:"len=4,dive,required"`
	TrainedAt string                   `json:"trained_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Metrics   map[string]TargetMetrics `json:"metrics"`
	Trees     []treeSpec               `json:"trees" validate:"min=1,dive"`
}

type treeSpec struct {
	Nodes []nodeSpec `json:"nodes" validate:"min=1"`
}

// nodeSpec mirrors one row of sklearn's tree_ arrays.
type nodeSpec struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value"`
}

type node struct {
	leaf      bool
	feature   int
	threshold float64
	left      int
	right     int
	value     models.TargetVector
}

type tree []node

// Forest is a fitted random-forest regressor. It is immutable after Load.
type Forest struct {
	trees []tree
	info  Info
}

// Load reads a forest artifact from path.
func Load(path string) (*Forest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", path, err)
	}
	defer f.Close()
	forest, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	return forest, nil
}

// Parse decodes and validates a forest artifact.
func Parse(r io.Reader) (*Forest, error) {
	var a artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidArtifact, err)
	}
	if err := validate.Struct(a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if err := checkNames("features", a.Features, models.FeatureNames); err != nil {
		return nil, err
	}
	if err := checkNames("targets", a.Targets, models.TargetNames); err != nil {
		return nil, err
	}

	forest := &Forest{
		trees: make([]tree, 0, len(a.Trees)),
		info: Info{
			Kind:    a.Kind,
			Trees:   len(a.Trees),
			Metrics: a.Metrics,
		},
	}
	if a.TrainedAt != "" {
		forest.info.TrainedAt, _ = time.Parse(time.RFC3339, a.TrainedAt)
	}
	for i, spec := range a.Trees {
		t, err := compileTree(spec)
		if err != nil {
			return nil, fmt.Errorf("%w: tree %d: %v", ErrInvalidArtifact, i, err)
		}
		forest.trees = append(forest.trees, t)
		forest.info.Nodes += len(t)
	}
	return forest, nil
}

func checkNames(field string, got, want []string) error {
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("%w: %s[%d] = %q, want %q", ErrInvalidArtifact, field, i, got[i], want[i])
		}
	}
	return nil
}

// compileTree checks tree structure. Children must come after their parent,
// which rules out cycles and bounds every walk by len(nodes).
func compileTree(spec treeSpec) (tree, error) {
	n := len(spec.Nodes)
	t := make(tree, n)
	for i, ns := range spec.Nodes {
		if ns.Left == leafChild && ns.Right == leafChild {
			if len(ns.Value) != models.NumTargets {
				return nil, fmt.Errorf("node %d: leaf has %d values, want %d", i, len(ns.Value), models.NumTargets)
			}
			var v models.TargetVector
			for j, x := range ns.Value {
				if math.IsNaN(x) || math.IsInf(x, 0) {
					return nil, fmt.Errorf("node %d: non-finite leaf value", i)
				}
				v[j] = x
			}
			t[i] = node{leaf: true, value: v}
			continue
		}
		if ns.Feature < 0 || ns.Feature >= models.NumFeatures {
			return nil, fmt.Errorf("node %d: feature index %d out of range", i, ns.Feature)
		}
		if ns.Left <= i || ns.Left >= n || ns.Right <= i || ns.Right >= n {
			return nil, fmt.Errorf("node %d: children (%d, %d) out of order", i, ns.Left, ns.Right)
		}
		if math.IsNaN(ns.Threshold) || math.IsInf(ns.Threshold, 0) {
			return nil, fmt.Errorf("node %d: non-finite threshold", i)
		}
		t[i] = node{feature: ns.Feature, threshold: ns.Threshold, left: ns.Left, right: ns.Right}
	}
	return t, nil
}

func (t tree) eval(x *models.FeatureVector) models.TargetVector {
	i := 0
	for {
		n := &t[i]
		if n.leaf {
			return n.value
		}
		if x[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

// Predict averages the leaf values reached in every tree.
func (f *Forest) Predict(x models.FeatureVector) (models.TargetVector, error) {
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.TargetVector{}, fmt.Errorf("%w: feature %s is not finite", ErrInference, models.FeatureNames[i])
		}
	}
	var sum models.TargetVector
	for _, t := range f.trees {
		leaf := t.eval(&x)
		for j := range sum {
			sum[j] += leaf[j]
		}
	}
	n := float64(len(f.trees))
	for j := range sum {
		sum[j] /= n
		if math.IsNaN(sum[j]) || math.IsInf(sum[j], 0) {
			return models.TargetVector{}, fmt.Errorf("%w: %s is not finite", ErrInference, models.TargetNames[j])
		}
	}
	return sum, nil
}

// Info returns metadata about the loaded forest.
func (f *Forest) Info() Info {
	return f.info
}
