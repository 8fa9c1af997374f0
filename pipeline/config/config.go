// Package config provides configuration structures for the pipeline execution
// engine. Configuration is supplied when a pipeline or stage is constructed
// and is read by the engine while the pipeline runs.
package config

// Operator selects how a parallel group's branch verdicts combine into a
// single stage verdict.
type Operator string

const (
	// OperatorAND requires every branch to succeed for the group to succeed.
	OperatorAND Operator = "AND"

	// OperatorOR requires at least one branch to succeed for the group to succeed.
	OperatorOR Operator = "OR"
)

// PipelineConfig defines process-wide settings for a single Pipeline.
//
// Example JSON:
//
//	{
//	  "fail_fast": true,
//	  "parallel_worker_pool_size": 8,
//	  "default_parallel_operator": "AND",
//	  "observer": "slog"
//	}
type PipelineConfig struct {
	// FailFastNil controls whether a critical step failure aborts the
	// remaining stages. Use the FailFast() accessor to read it — nil means
	// the default (true) applies, distinguishing "unset" from "explicit false"
	// the same way ParallelConfig.FailFastNil does in the orchestrate package.
	FailFastNil *bool `json:"fail_fast"`

	// ParallelWorkerPoolSize bounds how many of a parallel stage's branches may
	// execute concurrently, gated by a buffered-channel semaphore. Nil or
	// non-positive means unbounded (every branch runs concurrently).
	ParallelWorkerPoolSize *int `json:"parallel_worker_pool_size"`

	// DefaultParallelOperator is used by parallel stages that do not specify
	// their own operator.
	DefaultParallelOperator Operator `json:"default_parallel_operator"`

	// Observer names the registered observability.Observer used to emit
	// execution events ("noop", "slog", ...).
	Observer string `json:"observer"`
}

// FailFast reports whether a critical step failure should abort the pipeline.
// Defaults to true when unset.
func (c *PipelineConfig) FailFast() bool {
	if c.FailFastNil == nil {
		return true
	}
	return *c.FailFastNil
}

// DefaultPipelineConfig returns sensible defaults: fail-fast enabled, an
// unbounded worker pool per parallel stage, AND as the default operator, and
// the "slog" observer for practical observability during development.
func DefaultPipelineConfig() PipelineConfig {
	failFast := true
	return PipelineConfig{
		FailFastNil:             &failFast,
		DefaultParallelOperator: OperatorAND,
		Observer:                "slog",
	}
}

// Merge layers source over c, following a non-zero-wins convention: a field
// set on source overrides c, and a zero-value field leaves c unchanged.
func (c *PipelineConfig) Merge(source *PipelineConfig) {
	if source == nil {
		return
	}
	if source.FailFastNil != nil {
		c.FailFastNil = source.FailFastNil
	}
	if source.ParallelWorkerPoolSize != nil {
		c.ParallelWorkerPoolSize = source.ParallelWorkerPoolSize
	}
	if source.DefaultParallelOperator != "" {
		c.DefaultParallelOperator = source.DefaultParallelOperator
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
}

// ParallelConfig defines per-stage settings for a parallel group.
//
// Example JSON:
//
//	{"operator": "OR", "timeout_seconds": 2.5, "observer": "slog"}
type ParallelConfig struct {
	// Operator combines branch verdicts into the stage verdict. Empty means
	// "use the owning PipelineConfig's DefaultParallelOperator".
	Operator Operator `json:"operator"`

	// TimeoutSeconds bounds how long the stage waits for all branches to
	// finish. Zero (or negative) means no group timeout.
	TimeoutSeconds float64 `json:"timeout_seconds"`

	// Observer optionally overrides the pipeline-level observer for this
	// stage only. Empty, or a name that is not registered, means "inherit".
	Observer string `json:"observer"`
}

// DefaultParallelConfig returns AND semantics with no group timeout.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{Operator: OperatorAND}
}

// Merge layers source over c.
func (c *ParallelConfig) Merge(source *ParallelConfig) {
	if source == nil {
		return
	}
	if source.Operator != "" {
		c.Operator = source.Operator
	}
	if source.TimeoutSeconds > 0 {
		c.TimeoutSeconds = source.TimeoutSeconds
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
}
