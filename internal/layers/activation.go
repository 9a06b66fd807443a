package layers

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/memnet/go-solver/internal/tensor"
)

// #region activation

// Activation names an element-wise (or row-wise, for softmax) non-linearity.
type Activation string

const (
	ActivationLinear  Activation = "linear"
	ActivationReLU    Activation = "relu"
	ActivationTanh    Activation = "tanh"
	ActivationSigmoid Activation = "sigmoid"
	ActivationSoftmax Activation = "softmax"
)

// ParseActivation validates a configured activation name. Empty means linear.
func ParseActivation(name string) (Activation, error) {
	switch a := Activation(name); a {
	case "":
		return ActivationLinear, nil
	case ActivationLinear, ActivationReLU, ActivationTanh, ActivationSigmoid, ActivationSoftmax:
		return a, nil
	default:
		return "", fmt.Errorf("unknown activation %q", name)
	}
}

// Apply runs the activation over t.
func (a Activation) Apply(t *tensor.Tensor) *tensor.Tensor {
	switch a {
	case ActivationReLU:
		return tensor.Map(t, func(v float64) float64 { return math.Max(0, v) })
	case ActivationTanh:
		return tensor.Map(t, math.Tanh)
	case ActivationSigmoid:
		return tensor.Map(t, func(v float64) float64 { return 1 / (1 + math.Exp(-v)) })
	case ActivationSoftmax:
		return tensor.Softmax(t)
	default:
		return t
	}
}

// #endregion activation
