// Package pipeline implements a fixed-shape execution engine for multi-stage
// task pipelines: an ordered list of stages, each either a single step or a
// parallel group of steps sharing one mutable Context.
//
// # Building a Pipeline
//
//	steps := []pipeline.Stage{
//	    pipeline.Single(fetchStep),
//	    pipeline.ParallelGroup(config.ParallelConfig{Operator: config.OperatorAND}, validateA, validateB),
//	    pipeline.Single(publishStep),
//	}
//	p, err := pipeline.NewPipeline(steps, pipeline.WithConfig(config.PipelineConfig{Observer: "slog"}))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := p.Run(ctx, pipeline.NewContext(appConfig, logger))
//
// # Serial and Parallel Stages
//
// A serial stage runs its one step against the Context in the calling
// goroutine. A parallel stage copies the Context's Results, Errors and
// StepStatuses containers once per branch (values stored in them are shared,
// not cloned), fans the branches out onto their own goroutines, and merges
// the completed branches' contributions back into a single Context once the
// group finishes or its timeout elapses — whichever comes first. Branches still running when the
// timeout elapses are left running; the engine stops waiting for them but
// never cancels them.
//
// # Merge Semantics
//
// Merging is type-directed: a result key's Go value determines whether
// branch values are summed (numeric), concatenated (slice), shallow-folded
// (map), or resolved last-branch-wins (everything else). See merge.go for the
// classification rules and RegisterMergeStrategy for extending them.
//
// # Fail-Fast and Verdicts
//
// Every step or group produces a Verdict: OK, a non-critical failure (logged,
// execution continues), or a critical failure. When PipelineConfig.FailFast
// is true (the default) a critical failure aborts every remaining stage,
// whose steps are marked SKIPPED rather than left PENDING.
//
// # Progress and Status
//
// Each stage is assigned a fixed share of 100 progress points at
// construction time (100/stage-count, split evenly across a parallel group's
// branches). A step reports how far through its own work it is via
// Context.UpdateStepProgress; Pipeline.GetStatus reports the live sum of
// every step's contribution, clamped to [0, 100].
//
// # Observability
//
// Every stage and step transition emits an observability.Event through the
// observer named by PipelineConfig.Observer ("slog" by default, "noop" for
// zero overhead), or through WithObserver for tests that need to capture
// events directly.
package pipeline
