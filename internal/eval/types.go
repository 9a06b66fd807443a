package eval

// #region eval-config
// EvalConfig holds thresholds for model checks.
type EvalConfig struct {
	MinAccuracy  float64 // fail if accuracy falls below this; 0 disables
	Tolerance    float64 // allowed deviation of a soft attention row sum from 1
	MaxParamNorm float64 // fail if any weight tensor's L2 norm exceeds this
}

// DefaultEvalConfig returns defaults that only reject broken models.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MinAccuracy:  0,
		Tolerance:    1e-6,
		MaxParamNorm: 1e3,
	}
}
// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}
// #endregion eval-metric

// #region eval-result
// EvalResult is the output of a harness run.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}
// #endregion eval-result
