package pipeline

import (
	"context"
	"reflect"
	"time"

	"github.com/tailored-agentic-units/pipeline-engine/observability"
	"github.com/tailored-agentic-units/pipeline-engine/pipeline/config"
)

// branchOutcome is one branch's result, indexed by its position in the
// stage's declared step order so the collector can restore input order
// regardless of completion order.
type branchOutcome struct {
	index   int
	ctx     *Context
	verdict Verdict
}

// executeParallel fans a stage's steps out onto one goroutine per branch,
// gives each branch its own shallowCopy of the context, joins bounded by the group
// timeout, merges completed branch contexts by the type-directed rules in
// merge.go, and evaluates the AND/OR group verdict.
func executeParallel(
	goCtx context.Context,
	stageIndex int,
	stage Stage,
	pc *Context,
	statuses *statusTable,
	observer observability.Observer,
	defaultOperator config.Operator,
	workerPoolSize *int,
) (*Context, Verdict) {
	steps := stage.Steps
	n := len(steps)

	operator := stage.Group.Operator
	if operator == "" {
		operator = defaultOperator
	}

	if stage.Group.Observer != "" {
		if obs, err := observability.GetObserver(stage.Group.Observer); err == nil {
			observer = obs
		}
	}

	observer.OnEvent(goCtx, observability.Event{
		Type:      observability.EventStageStart,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "pipeline.executeParallel",
		Data: map[string]any{
			"stage_index":  stageIndex,
			"branch_count": n,
			"operator":     string(operator),
		},
	})

	// preStage snapshots the values visible before this stage ran, so the
	// collector can tell a branch's genuine write apart from data it merely
	// inherited via its copy of pc.
	preStage := make(map[string]any, len(pc.Results))
	for k, v := range pc.Results {
		preStage[k] = v
	}
	preErrorCount := len(pc.Errors)

	// A non-nil, positive pool size gates how many branches may run
	// executeSerial at once: every branch still gets its own goroutine, but
	// acquires a slot from this buffered channel before doing any work and
	// releases it on completion, so at most poolSize branches execute
	// concurrently while the rest block waiting their turn.
	var pool chan struct{}
	if workerPoolSize != nil && *workerPoolSize > 0 {
		pool = make(chan struct{}, *workerPoolSize)
	}

	outcomes := make(chan branchOutcome, n)
	for i, step := range steps {
		branchCtx := pc.shallowCopy()
		go func(i int, step Step, branchCtx *Context) {
			if pool != nil {
				pool <- struct{}{}
				defer func() { <-pool }()
			}
			updated, verdict := executeSerial(goCtx, step, branchCtx, statuses, observer)
			outcomes <- branchOutcome{index: i, ctx: updated, verdict: verdict}
		}(i, step, branchCtx)
	}

	var timeoutCh <-chan time.Time
	var timer *time.Timer
	if stage.Group.TimeoutSeconds > 0 {
		timer = time.NewTimer(time.Duration(stage.Group.TimeoutSeconds * float64(time.Second)))
		defer timer.Stop()
		timeoutCh = timer.C
	}

	collected := make([]*branchOutcome, n)
	received := 0
	timedOut := false

collectLoop:
	for received < n {
		select {
		case o := <-outcomes:
			oc := o
			collected[o.index] = &oc
			received++
		case <-timeoutCh:
			timedOut = true
			break collectLoop
		}
	}

	merged := mergeBranches(pc, collected, preStage, preErrorCount)

	if timedOut {
		pending := make([]string, 0, n-received)
		for i, step := range steps {
			if collected[i] == nil {
				pending = append(pending, step.StepID())
			}
		}

		timeout := time.Duration(stage.Group.TimeoutSeconds * float64(time.Second))
		merged.Errors = append(merged.Errors, ErrorRecord{
			StepID:   "",
			Message:  (&GroupTimeoutError{StageIndex: stageIndex, Timeout: timeout, Pending: pending}).Error(),
			Critical: true,
			Phase:    PhaseTimeout,
		})

		observer.OnEvent(goCtx, observability.Event{
			Type:      observability.EventGroupTimeout,
			Level:     observability.LevelError,
			Timestamp: time.Now(),
			Source:    "pipeline.executeParallel",
			Data: map[string]any{
				"stage_index": stageIndex,
				"pending":     pending,
			},
		})

		observer.OnEvent(goCtx, observability.Event{
			Type:      observability.EventStageComplete,
			Level:     observability.LevelError,
			Timestamp: time.Now(),
			Source:    "pipeline.executeParallel",
			Data: map[string]any{
				"stage_index": stageIndex,
				"error":       true,
			},
		})

		// A timed-out branch keeps running in the background and its status
		// stays RUNNING — the engine only stops waiting, it never cancels.
		return merged, VerdictFailedCritical
	}

	verdict := evaluateGroupVerdict(operator, collected)

	observer.OnEvent(goCtx, observability.Event{
		Type:      observability.EventStageComplete,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "pipeline.executeParallel",
		Data: map[string]any{
			"stage_index": stageIndex,
			"error":       verdict != VerdictOK,
		},
	})

	return merged, verdict
}

// evaluateGroupVerdict combines completed branch verdicts per the AND/OR
// rule. Branches that never completed (nil) are excluded from both evaluation
// and criticality lookups.
func evaluateGroupVerdict(operator config.Operator, collected []*branchOutcome) Verdict {
	anyCriticalFailure := false
	anyOK := false
	allOK := true
	sawAny := false

	for _, o := range collected {
		if o == nil {
			continue
		}
		sawAny = true
		switch o.verdict {
		case VerdictOK:
			anyOK = true
		case VerdictFailedCritical:
			allOK = false
			anyCriticalFailure = true
		case VerdictFailedNonCritical:
			allOK = false
		}
	}

	if !sawAny {
		return VerdictOK
	}

	switch operator {
	case config.OperatorOR:
		if anyOK {
			return VerdictOK
		}
		if anyCriticalFailure {
			return VerdictFailedCritical
		}
		return VerdictFailedNonCritical
	default: // AND
		if allOK {
			return VerdictOK
		}
		if anyCriticalFailure {
			return VerdictFailedCritical
		}
		return VerdictFailedNonCritical
	}
}

// mergeBranches folds every completed branch's contributions into a fresh
// copy of the pre-stage context, using input order (not completion order)
// for every merge rule, per the engine's determinism contract.
func mergeBranches(base *Context, collected []*branchOutcome, preStage map[string]any, preErrorCount int) *Context {
	merged := base.shallowCopy()

	touched := map[string]bool{}
	for _, o := range collected {
		if o == nil {
			continue
		}
		for key, v := range o.ctx.Results {
			orig, existed := preStage[key]
			if !existed || !reflect.DeepEqual(orig, v) {
				touched[key] = true
			}
		}
	}

	for key := range touched {
		baseVal, basePresent := preStage[key]

		var branchVals []any
		for _, o := range collected {
			if o == nil {
				continue
			}
			v, ok := o.ctx.Results[key]
			if !ok {
				continue
			}
			orig, existed := preStage[key]
			if existed && reflect.DeepEqual(orig, v) {
				continue // inherited, not written by this branch
			}
			branchVals = append(branchVals, v)
		}

		merged.Results[key] = mergeValue(baseVal, basePresent, branchVals)
	}

	for _, o := range collected {
		if o == nil {
			continue
		}
		if len(o.ctx.Errors) > preErrorCount {
			merged.Errors = append(merged.Errors, o.ctx.Errors[preErrorCount:]...)
		}
	}

	return merged
}
