// Package eval checks a model's outputs: accuracy against labels, attention
// well-formedness per hop, and weight norms.
package eval

import (
	"fmt"
	"math"
	"strings"

	"github.com/danielpatrickdp/memnet/go-solver/internal/graph"
	"github.com/danielpatrickdp/memnet/go-solver/internal/tensor"
)

// #region eval-harness
// EvalHarness runs the checks.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Input is everything the harness looks at. Labels may be nil to skip the
// accuracy check.
type Input struct {
	Scores    *tensor.Tensor
	Labels    []bool
	Attention []*tensor.Tensor
	Hard      bool
	Params    []*graph.Param
}

// Run performs every check and collects metrics.
func (h *EvalHarness) Run(in Input) EvalResult {
	var metrics []EvalMetric
	var failReasons []string
	add := func(m EvalMetric, reason string) {
		metrics = append(metrics, m)
		if !m.Pass {
			failReasons = append(failReasons, reason)
		}
	}

	// 1. Accuracy of p(true|x) > 0.5 against labels
	if in.Labels != nil {
		acc, err := Accuracy(in.Scores, in.Labels)
		if err != nil {
			add(EvalMetric{Name: "accuracy", Pass: false}, err.Error())
		} else {
			add(EvalMetric{Name: "accuracy", Value: acc, Pass: acc >= h.config.MinAccuracy},
				fmt.Sprintf("accuracy %.4f below %.4f", acc, h.config.MinAccuracy))
		}
	}

	// 2. Attention rows: soft sums to 1, hard is one-hot
	for hop, att := range in.Attention {
		dev := AttentionDeviation(att, in.Hard)
		name := fmt.Sprintf("attention_hop_%d_deviation", hop)
		add(EvalMetric{Name: name, Value: dev, Pass: dev <= h.config.Tolerance},
			fmt.Sprintf("hop %d attention deviates by %.6f", hop, dev))
	}

	// 3. Weight norms
	maxNorm, maxName := 0.0, ""
	for _, p := range in.Params {
		if n := p.Value.Norm(); n > maxNorm {
			maxNorm, maxName = n, p.Name
		}
	}
	if len(in.Params) > 0 {
		add(EvalMetric{Name: "max_param_norm", Value: maxNorm, Pass: maxNorm <= h.config.MaxParamNorm},
			fmt.Sprintf("param %s norm %.4f exceeds %.4f", maxName, maxNorm, h.config.MaxParamNorm))
	}

	result := EvalResult{Passed: len(failReasons) == 0, Metrics: metrics}
	if !result.Passed {
		result.Reason = strings.Join(failReasons, "; ")
	}
	return result
}
// #endregion eval-harness

// #region checks
// Accuracy is the fraction of rows whose p(true|x), column 1, agrees with
// the label at a 0.5 threshold.
func Accuracy(scores *tensor.Tensor, labels []bool) (float64, error) {
	if scores == nil || scores.Rank() != 2 || scores.Dim(1) < 2 {
		return 0, fmt.Errorf("scores must be (batch, >=2)")
	}
	if scores.Dim(0) != len(labels) {
		return 0, fmt.Errorf("%d score rows for %d labels", scores.Dim(0), len(labels))
	}
	if len(labels) == 0 {
		return 0, nil
	}
	correct := 0
	for i, label := range labels {
		if (scores.At(i, 1) > 0.5) == label {
			correct++
		}
	}
	return float64(correct) / float64(len(labels)), nil
}

// AttentionDeviation returns the worst row error: |sum-1| for soft
// attention, or the distance from the nearest one-hot row for hard.
func AttentionDeviation(att *tensor.Tensor, hard bool) float64 {
	worst := 0.0
	for b := 0; b < att.Dim(0); b++ {
		row := att.Row(b)
		var dev float64
		if hard {
			ones := 0
			for _, v := range row {
				switch {
				case v == 1:
					ones++
				case v != 0:
					dev = math.Max(dev, math.Min(math.Abs(v), math.Abs(v-1)))
				}
			}
			if ones != 1 {
				dev = math.Max(dev, 1)
			}
		} else {
			var sum float64
			for _, v := range row {
				if v < 0 {
					dev = math.Max(dev, -v)
				}
				sum += v
			}
			dev = math.Max(dev, math.Abs(sum-1))
		}
		worst = math.Max(worst, dev)
	}
	return worst
}
// #endregion checks
