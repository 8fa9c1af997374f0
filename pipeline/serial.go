package pipeline

import (
	"context"
	"time"

	"github.com/tailored-agentic-units/pipeline-engine/observability"
)

// Verdict is the outcome of running a single step or an entire parallel
// group, used by the orchestrator to apply the fail-fast/fail-slow policy.
type Verdict int

const (
	VerdictOK Verdict = iota
	VerdictFailedCritical
	VerdictFailedNonCritical
)

// executeSerial runs one step in the calling goroutine against pc, following
// the serial stage executor contract: transition PENDING->RUNNING->
// {SUCCEEDED,FAILED}, rebind the progress setter for the duration of the
// call, and convert a returned error into an ErrorRecord plus verdict.
func executeSerial(
	goCtx context.Context,
	step Step,
	pc *Context,
	statuses *statusTable,
	observer observability.Observer,
) (*Context, Verdict) {
	id := step.StepID()

	statuses.setState(id, StateRunning)
	pc.UpdateStepProgress = func(percent float64) { statuses.setProgress(id, percent) }

	observer.OnEvent(goCtx, observability.Event{
		Type:      observability.EventStepStart,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "pipeline.executeSerial",
		Data: map[string]any{
			"step_id":  id,
			"critical": step.Critical(),
		},
	})

	next, err := step.Run(goCtx, pc)
	if next == nil {
		next = pc
	}

	pc.UpdateStepProgress = noopProgressSetter
	next.UpdateStepProgress = noopProgressSetter

	if err != nil {
		statuses.setState(id, StateFailed)
		statuses.setError(id, err.Error())

		next.Errors = append(next.Errors, ErrorRecord{
			StepID:   id,
			Message:  err.Error(),
			Critical: step.Critical(),
			Phase:    PhaseRun,
		})

		verdict := VerdictFailedNonCritical
		if step.Critical() {
			verdict = VerdictFailedCritical
		}

		observer.OnEvent(goCtx, observability.Event{
			Type:      observability.EventStepComplete,
			Level:     observability.LevelWarning,
			Timestamp: time.Now(),
			Source:    "pipeline.executeSerial",
			Data: map[string]any{
				"step_id": id,
				"error":   true,
			},
		})

		return next, verdict
	}

	statuses.setProgress(id, 100)
	statuses.setState(id, StateSucceeded)

	observer.OnEvent(goCtx, observability.Event{
		Type:      observability.EventStepComplete,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "pipeline.executeSerial",
		Data: map[string]any{
			"step_id": id,
			"error":   false,
		},
	})

	return next, VerdictOK
}
