package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

const defaultMaxDepth = 3

type DecisionTree struct {
	MaxDepth int
	classes  int
	width    int
	nodes    []TreeNode
}

type TreeNode struct {
	FeatureIdx   int       `json:"feature_idx"`
	Threshold    float64   `json:"threshold"`
	LeftChild    int       `json:"left_child"`
	RightChild   int       `json:"right_child"`
	ClassLabel   int       `json:"class_label"`
	IsLeaf       bool      `json:"is_leaf"`
	Distribution []float64 `json:"distribution,omitempty"`
}

type decisionTreeJSON struct {
	MaxDepth int        `json:"max_depth"`
	Classes  int        `json:"classes"`
	Width    int        `json:"width"`
	Nodes    []TreeNode `json:"nodes"`
}

func NewDecisionTree(maxDepth int) *DecisionTree {
	return &DecisionTree{MaxDepth: maxDepth}
}

func (dt *DecisionTree) Type() string { return ModelTypeDecisionTree }

func (dt *DecisionTree) NumClasses() int { return dt.classes }

func (dt *DecisionTree) NumFeatures() int { return dt.width }

func (dt *DecisionTree) Train(features [][]float64, labels []int) error {
	width, err := validateTrainingSet(features, labels)
	if err != nil {
		return err
	}
	maxDepth := dt.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}

	dt.classes = numClasses(labels)
	dt.width = width
	dt.nodes = dt.buildNode(features, labels, 0, maxDepth)
	return nil
}

// PredictProba walks to a leaf and returns the class frequencies observed
// there during training.
func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	if len(dt.nodes) == 0 {
		return nil, ErrNotTrained
	}
	if len(features) != dt.width {
		return nil, errors.New("feature width mismatch")
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			if len(node.Distribution) != dt.classes {
				return nil, errors.New("invalid tree state")
			}
			return append([]float64(nil), node.Distribution...), nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return nil, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return nil, errors.New("invalid tree state")
		}
	}
}

func (dt *DecisionTree) MarshalJSON() ([]byte, error) {
	if len(dt.nodes) == 0 {
		return nil, ErrNotTrained
	}
	return json.Marshal(decisionTreeJSON{
		MaxDepth: dt.MaxDepth,
		Classes:  dt.classes,
		Width:    dt.width,
		Nodes:    dt.nodes,
	})
}

func (dt *DecisionTree) UnmarshalJSON(data []byte) error {
	var payload decisionTreeJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if err := payload.validate(); err != nil {
		return err
	}
	dt.MaxDepth = payload.MaxDepth
	dt.classes = payload.Classes
	dt.width = payload.Width
	dt.nodes = payload.Nodes
	return nil
}

func (dt *DecisionTree) Save(path string) error {
	return SaveModel(path, dt)
}

func (dt *DecisionTree) Load(path string) error {
	return loadInto(path, dt)
}

func (dt *DecisionTree) leaf(labels []int) []TreeNode {
	return []TreeNode{{
		FeatureIdx:   -1,
		Threshold:    0,
		LeftChild:    -1,
		RightChild:   -1,
		ClassLabel:   majorityLabel(labels),
		IsLeaf:       true,
		Distribution: distribution(labels, dt.classes),
	}}
}

func (dt *DecisionTree) buildNode(features [][]float64, labels []int, depth int, maxDepth int) []TreeNode {
	if depth >= maxDepth || isPure(labels) {
		return dt.leaf(labels)
	}

	bestFeature, threshold, ok := findBestSplit(features, labels)
	if !ok {
		return dt.leaf(labels)
	}

	leftFeatures, leftLabels, rightFeatures, rightLabels := splitData(features, labels, bestFeature, threshold)
	if len(leftLabels) == 0 || len(rightLabels) == 0 {
		return dt.leaf(labels)
	}

	leftNodes := dt.buildNode(leftFeatures, leftLabels, depth+1, maxDepth)
	rightNodes := dt.buildNode(rightFeatures, rightLabels, depth+1, maxDepth)

	root := TreeNode{
		FeatureIdx: bestFeature,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
		ClassLabel: majorityLabel(labels),
		IsLeaf:     false,
	}

	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, shift(leftNodes, root.LeftChild)...)
	nodes = append(nodes, shift(rightNodes, root.RightChild)...)
	return nodes
}

// shift rebases a subtree's child indices, which are relative to its own
// root, onto the position the subtree takes in its parent's slice.
func shift(nodes []TreeNode, offset int) []TreeNode {
	for i := range nodes {
		if nodes[i].IsLeaf {
			continue
		}
		nodes[i].LeftChild += offset
		nodes[i].RightChild += offset
	}
	return nodes
}

// validate checks a decoded tree so that every walk from the root ends at
// a leaf: children always point forward and inside the slice.
func (p decisionTreeJSON) validate() error {
	if len(p.Nodes) == 0 {
		return errors.New("decision tree has no nodes")
	}
	if p.Classes <= 0 || p.Width <= 0 {
		return errors.New("decision tree is missing classes or width")
	}
	for i, node := range p.Nodes {
		if node.IsLeaf {
			if len(node.Distribution) != p.Classes {
				return fmt.Errorf("leaf %d has %d class probabilities, expected %d", i, len(node.Distribution), p.Classes)
			}
			for _, v := range node.Distribution {
				if !(v >= 0 && v <= 1) {
					return fmt.Errorf("leaf %d has probability %v outside [0, 1]", i, v)
				}
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= p.Width {
			return fmt.Errorf("node %d splits on feature %d, width is %d", i, node.FeatureIdx, p.Width)
		}
		for _, child := range []int{node.LeftChild, node.RightChild} {
			if child <= i || child >= len(p.Nodes) {
				return fmt.Errorf("node %d has child %d outside (%d, %d)", i, child, i, len(p.Nodes))
			}
		}
	}
	return nil
}

func findBestSplit(features [][]float64, labels []int) (int, float64, bool) {
	featureCount := len(features[0])
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := math.MaxFloat64

	for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
		values := make([]float64, len(features))
		for i := range features {
			values[i] = features[i][featureIdx]
		}
		threshold := median(values)
		leftLabels, rightLabels := splitLabels(features, labels, featureIdx, threshold)
		if len(leftLabels) == 0 || len(rightLabels) == 0 {
			continue
		}
		impurity := weightedGini(leftLabels, rightLabels)
		if impurity < bestImpurity {
			bestImpurity = impurity
			bestFeature = featureIdx
			bestThreshold = threshold
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func splitData(features [][]float64, labels []int, featureIdx int, threshold float64) ([][]float64, []int, [][]float64, []int) {
	leftFeatures := make([][]float64, 0)
	leftLabels := make([]int, 0)
	rightFeatures := make([][]float64, 0)
	rightLabels := make([]int, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftFeatures = append(leftFeatures, feature)
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightFeatures = append(rightFeatures, feature)
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftFeatures, leftLabels, rightFeatures, rightLabels
}

func splitLabels(features [][]float64, labels []int, featureIdx int, threshold float64) ([]int, []int) {
	leftLabels := make([]int, 0)
	rightLabels := make([]int, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftLabels, rightLabels
}

func weightedGini(leftLabels, rightLabels []int) float64 {
	leftWeight := float64(len(leftLabels))
	rightWeight := float64(len(rightLabels))
	total := leftWeight + rightWeight
	return (leftWeight/total)*gini(leftLabels) + (rightWeight/total)*gini(rightLabels)
}

func gini(labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	counts := make(map[int]int)
	for _, label := range labels {
		counts[label]++
	}
	impurity := 1.0
	for _, count := range counts {
		prob := float64(count) / float64(len(labels))
		impurity -= prob * prob
	}
	return impurity
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func distribution(labels []int, classes int) []float64 {
	dist := make([]float64, classes)
	if len(labels) == 0 {
		return dist
	}
	for _, label := range labels {
		dist[label]++
	}
	for i := range dist {
		dist[i] /= float64(len(labels))
	}
	return dist
}

func majorityLabel(labels []int) int {
	counts := make(map[int]int)
	bestLabel := 0
	bestCount := -1
	for _, label := range labels {
		counts[label]++
		if counts[label] > bestCount {
			bestCount = counts[label]
			bestLabel = label
		}
	}
	return bestLabel
}

func isPure(labels []int) bool {
	if len(labels) == 0 {
		return true
	}
	first := labels[0]
	for _, label := range labels[1:] {
		if label != first {
			return false
		}
	}
	return true
}
