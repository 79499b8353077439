package ml

import "math"

func columnMeans(features [][]float64, labels []int, classes, width int) ([][]float64, []int) {
	means := make([][]float64, classes)
	counts := make([]int, classes)
	for c := range means {
		means[c] = make([]float64, width)
	}
	for i, row := range features {
		c := labels[i]
		counts[c]++
		for j, v := range row {
			means[c][j] += v
		}
	}
	for c := range means {
		if counts[c] == 0 {
			continue
		}
		for j := range means[c] {
			means[c][j] /= float64(counts[c])
		}
	}
	return means, counts
}

// pooledVariance is the within-class variance of each feature, shared by
// all classes.
func pooledVariance(features [][]float64, labels []int, means [][]float64, width int) []float64 {
	variances := make([]float64, width)
	for i, row := range features {
		for j, v := range row {
			diff := v - means[labels[i]][j]
			variances[j] += diff * diff
		}
	}
	dof := len(features) - len(means)
	if dof <= 0 {
		dof = len(features)
	}
	for j := range variances {
		variances[j] /= float64(dof)
	}
	return variances
}

func logSumExp(values []float64) float64 {
	maxVal := math.Inf(-1)
	for _, v := range values {
		if v > maxVal {
			maxVal = v
		}
	}
	if math.IsInf(maxVal, -1) {
		return maxVal
	}
	sum := 0.0
	for _, v := range values {
		sum += math.Exp(v - maxVal)
	}
	return maxVal + math.Log(sum)
}

// softmaxLog turns log-scores into probabilities that sum to 1.
func softmaxLog(scores []float64) []float64 {
	norm := logSumExp(scores)
	probs := make([]float64, len(scores))
	for i, s := range scores {
		probs[i] = math.Exp(s - norm)
	}
	return probs
}
