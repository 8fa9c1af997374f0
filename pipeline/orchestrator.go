package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/pipeline-engine/observability"
	"github.com/tailored-agentic-units/pipeline-engine/pipeline/config"
)

// Snapshot is the point-in-time view returned by Pipeline.GetStatus.
type Snapshot struct {
	IsRunning     bool
	CurrentStepID string
	Progress      float64
	RunID         string
	StepDetails   map[string]StepStatus
}

// Pipeline is a fixed sequence of stages, each either a single step or a
// parallel group, run in order against one Context. A Pipeline is built once
// by NewPipeline and may be Run many times; each Run gets its own run id and
// resets every step back to PENDING first.
type Pipeline struct {
	stages []Stage
	cfg    config.PipelineConfig
	weight []weightEntry

	observer observability.Observer
	progress ProgressCallback

	mu            sync.Mutex
	running       bool
	currentStepID string
	runID         string
	statuses      *statusTable
}

// PipelineOption configures a Pipeline at construction time.
type PipelineOption func(*Pipeline)

// WithConfig layers cfg over the pipeline's default configuration.
func WithConfig(cfg config.PipelineConfig) PipelineOption {
	return func(p *Pipeline) {
		p.cfg.Merge(&cfg)
	}
}

// WithProgressCallback registers a callback invoked after every stage
// completes during Run.
func WithProgressCallback(callback ProgressCallback) PipelineOption {
	return func(p *Pipeline) {
		if callback != nil {
			p.progress = callback
		}
	}
}

// WithObserver overrides the observer resolved from cfg.Observer, useful for
// tests that need to capture events without going through the named registry.
func WithObserver(obs observability.Observer) PipelineOption {
	return func(p *Pipeline) {
		p.observer = obs
	}
}

// NewPipeline validates stages and builds the fixed weight plan described by
// the engine's progress model: each of the S stages gets a 100/S share, split
// evenly across a parallel stage's branches. An empty stage list is valid: it
// builds an empty weight plan, and Run returns its input context unchanged.
func NewPipeline(stages []Stage, opts ...PipelineOption) (*Pipeline, error) {
	seen := map[string]bool{}
	plan := make([]weightEntry, 0, len(stages))

	var stageShare float64
	if len(stages) > 0 {
		stageShare = 100.0 / float64(len(stages))
	}

	for _, stage := range stages {
		switch stage.Kind {
		case StageSingle:
			if stage.Step == nil {
				return nil, &ValidationError{Reason: "stage has no step"}
			}
			id := stage.Step.StepID()
			if id == "" {
				return nil, &ValidationError{Reason: "step id must not be blank"}
			}
			if seen[id] {
				return nil, &ValidationError{Reason: "duplicate step id: " + id}
			}
			seen[id] = true
			plan = append(plan, weightEntry{stepID: id, maxWeight: stageShare})

		case StageParallel:
			if len(stage.Steps) < 2 {
				return nil, &ValidationError{Reason: "parallel stage must have at least two steps"}
			}
			branchShare := stageShare / float64(len(stage.Steps))
			for _, step := range stage.Steps {
				if step == nil {
					return nil, &ValidationError{Reason: "parallel stage has a nil step"}
				}
				id := step.StepID()
				if id == "" {
					return nil, &ValidationError{Reason: "step id must not be blank"}
				}
				if seen[id] {
					return nil, &ValidationError{Reason: "duplicate step id: " + id}
				}
				seen[id] = true
				plan = append(plan, weightEntry{stepID: id, maxWeight: branchShare})
			}

		default:
			return nil, &ValidationError{Reason: "unknown stage kind"}
		}
	}

	p := &Pipeline{
		stages:   stages,
		cfg:      config.DefaultPipelineConfig(),
		weight:   plan,
		progress: noopProgressCallback,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.observer == nil {
		obs, err := observability.GetObserver(p.cfg.Observer)
		if err != nil {
			obs = observability.NoOpObserver{}
		}
		p.observer = obs
	}

	p.statuses = newStatusTable(plan)

	return p, nil
}

// Run executes every stage in order against pc, returning the final merged
// context and, when a critical failure aborts the run under fail-fast, an
// error describing that failure. The error is nil when the run is not
// aborted, including a fail-slow run in which critical steps failed; every
// failure is also recorded in Context.Errors. Run is not reentrant: calling it while a
// previous call is still in flight returns an error immediately.
func (p *Pipeline) Run(goCtx context.Context, pc *Context) (*Context, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return pc, &ValidationError{Reason: "pipeline is already running"}
	}
	p.running = true
	p.runID = uuid.New().String()
	p.statuses.reset(p.weight)
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.currentStepID = ""
		p.mu.Unlock()
	}()

	p.observer.OnEvent(goCtx, observability.Event{
		Type:      observability.EventPipelineStart,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "pipeline.Run",
		Data: map[string]any{
			"run_id":      p.runID,
			"stage_count": len(p.stages),
		},
	})

	current := pc
	aborted := false
	var firstCriticalErr error

	for i, stage := range p.stages {
		if aborted {
			for _, id := range stage.stepIDs() {
				p.statuses.setState(id, StateSkipped)
			}
			continue
		}

		p.setCurrentStep(stage)
		preStageErrorCount := len(current.Errors)

		var verdict Verdict
		if stage.Kind == StageSingle {
			current, verdict = executeSerial(goCtx, stage.Step, current, p.statuses, p.observer)
		} else {
			current, verdict = executeParallel(goCtx, i, stage, current, p.statuses, p.observer, p.cfg.DefaultParallelOperator, p.cfg.ParallelWorkerPoolSize)
		}

		p.progress(i, len(p.stages), lastStepID(stage), p.statuses.overallProgress())

		if verdict == VerdictFailedCritical && p.cfg.FailFast() {
			aborted = true
			if firstCriticalErr == nil {
				firstCriticalErr = criticalStepError(current, preStageErrorCount, lastStepID(stage))
			}
		}
	}

	p.observer.OnEvent(goCtx, observability.Event{
		Type:      observability.EventPipelineComplete,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "pipeline.Run",
		Data: map[string]any{
			"run_id": p.runID,
			"error":  firstCriticalErr != nil,
		},
	})

	return current, firstCriticalErr
}

func (p *Pipeline) setCurrentStep(stage Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentStepID = lastStepID(stage)
}

// criticalStepError builds the error Run returns for a stage that produced a
// critical verdict, reusing the message of the first critical record the
// stage appended to Context.Errors rather than a synthetic placeholder. A
// record with no step id (a group timeout) is attributed to fallbackStepID.
func criticalStepError(current *Context, preStageErrorCount int, fallbackStepID string) error {
	for _, rec := range current.Errors[preStageErrorCount:] {
		if rec.Critical {
			stepID := rec.StepID
			if stepID == "" {
				stepID = fallbackStepID
			}
			return &StepRunError{
				StepID:   stepID,
				Message:  rec.Message,
				Critical: true,
			}
		}
	}
	return &StepRunError{
		StepID:   fallbackStepID,
		Message:  "critical step failed",
		Critical: true,
	}
}

// lastStepID reports the step id the progress callback and the current-step
// marker attribute a stage to: the single step, or the last-declared branch
// of a parallel group.
func lastStepID(stage Stage) string {
	if stage.Kind == StageSingle {
		if stage.Step == nil {
			return ""
		}
		return stage.Step.StepID()
	}
	if len(stage.Steps) == 0 {
		return ""
	}
	return stage.Steps[len(stage.Steps)-1].StepID()
}

// GetStatus returns a point-in-time snapshot of the current (or most recent)
// run. Safe to call concurrently with Run.
func (p *Pipeline) GetStatus() Snapshot {
	p.mu.Lock()
	running := p.running
	currentStepID := p.currentStepID
	runID := p.runID
	p.mu.Unlock()

	return Snapshot{
		IsRunning:     running,
		CurrentStepID: currentStepID,
		Progress:      p.statuses.overallProgress(),
		RunID:         runID,
		StepDetails:   p.statuses.snapshot(),
	}
}
