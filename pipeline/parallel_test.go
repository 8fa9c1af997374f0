package pipeline_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tailored-agentic-units/pipeline-engine/observability"
	"github.com/tailored-agentic-units/pipeline-engine/pipeline"
	"github.com/tailored-agentic-units/pipeline-engine/pipeline/config"
)

type captureObserver struct {
	events []observability.Event
}

func (o *captureObserver) OnEvent(ctx context.Context, event observability.Event) {
	o.events = append(o.events, event)
}

func newCaptureObserver() *captureObserver {
	return &captureObserver{events: []observability.Event{}}
}

func (o *captureObserver) countType(t observability.EventType) int {
	n := 0
	for _, e := range o.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func TestPipeline_ParallelMergeIsDeterministicByBranchOrder(t *testing.T) {
	branchA := pipeline.StepFunc{
		ID: "branch-a",
		Fn: func(goCtx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
			pc.Results["tags"] = []string{"a"}
			return pc, nil
		},
	}
	branchB := pipeline.StepFunc{
		ID: "branch-b",
		Fn: func(goCtx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
			pc.Results["tags"] = []string{"b"}
			return pc, nil
		},
	}

	p, err := pipeline.NewPipeline([]pipeline.Stage{
		pipeline.ParallelGroup(config.DefaultParallelConfig(), branchA, branchB),
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	result, err := p.Run(context.Background(), pipeline.NewContext(nil, nil))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	tags, ok := result.Results["tags"].([]string)
	if !ok {
		t.Fatalf("expected []string, got %T", result.Results["tags"])
	}
	if len(tags) != 2 || tags[0] != "a" || tags[1] != "b" {
		t.Errorf("expected merged tags in branch order [a b], got %v", tags)
	}
}

func TestPipeline_ParallelGroupTimeoutLeavesPendingBranchRunning(t *testing.T) {
	released := make(chan struct{})

	fast := pipeline.StepFunc{
		ID: "fast",
		Fn: func(goCtx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
			pc.Results["fast"] = true
			return pc, nil
		},
	}
	slow := pipeline.StepFunc{
		ID: "slow",
		Fn: func(goCtx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
			<-released
			pc.Results["slow"] = true
			return pc, nil
		},
	}

	cfg := config.ParallelConfig{Operator: config.OperatorAND, TimeoutSeconds: 0.05}
	observer := newCaptureObserver()

	p, err := pipeline.NewPipeline(
		[]pipeline.Stage{pipeline.ParallelGroup(cfg, fast, slow)},
		pipeline.WithObserver(observer),
	)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	result, err := p.Run(context.Background(), pipeline.NewContext(nil, nil))
	if err == nil {
		t.Fatal("expected a critical error from group timeout")
	}
	if result.Results["fast"] != true {
		t.Error("expected the fast branch's contribution to survive the merge")
	}
	if _, ok := result.Results["slow"]; ok {
		t.Error("expected the slow branch's contribution to be excluded")
	}

	status := p.GetStatus()
	if status.StepDetails["slow"].State != pipeline.StateRunning {
		t.Errorf("expected slow branch to remain RUNNING after timeout, got %v", status.StepDetails["slow"].State)
	}

	if observer.countType(observability.EventGroupTimeout) != 1 {
		t.Errorf("expected one group timeout event, got %d", observer.countType(observability.EventGroupTimeout))
	}

	close(released)
	time.Sleep(10 * time.Millisecond) // let the abandoned goroutine finish so the test doesn't leak a block
}

func TestPipeline_ParallelOROperatorSucceedsOnOneBranch(t *testing.T) {
	ok := pipeline.StepFunc{
		ID: "ok",
		Fn: func(goCtx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
			return pc, nil
		},
	}
	fails := pipeline.StepFunc{
		ID: "fails",
		Fn: func(goCtx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
			return pc, errors.New("boom")
		},
	}

	cfg := config.ParallelConfig{Operator: config.OperatorOR}
	p, err := pipeline.NewPipeline([]pipeline.Stage{pipeline.ParallelGroup(cfg, ok, fails)})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	_, err = p.Run(context.Background(), pipeline.NewContext(nil, nil))
	if err != nil {
		t.Fatalf("expected OR group to succeed with one passing branch, got %v", err)
	}
}

func TestPipeline_ParallelWorkerPoolSizeBoundsConcurrentBranches(t *testing.T) {
	var current, observedMax int64

	branch := func(id string) pipeline.StepFunc {
		return pipeline.StepFunc{
			ID: id,
			Fn: func(goCtx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
				n := atomic.AddInt64(&current, 1)
				for {
					max := atomic.LoadInt64(&observedMax)
					if n <= max || atomic.CompareAndSwapInt64(&observedMax, max, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt64(&current, -1)
				return pc, nil
			},
		}
	}

	poolSize := 1
	pipelineCfg := config.PipelineConfig{ParallelWorkerPoolSize: &poolSize}

	p, err := pipeline.NewPipeline(
		[]pipeline.Stage{pipeline.ParallelGroup(config.DefaultParallelConfig(),
			branch("one"), branch("two"), branch("three"))},
		pipeline.WithConfig(pipelineCfg),
	)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	if _, err := p.Run(context.Background(), pipeline.NewContext(nil, nil)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := atomic.LoadInt64(&observedMax); got != 1 {
		t.Errorf("expected at most 1 branch running concurrently with a pool size of 1, observed %d", got)
	}
}

func TestPipeline_NumericResultsSumAcrossBranches(t *testing.T) {
	a := pipeline.StepFunc{
		ID: "count-a",
		Fn: func(goCtx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
			pc.Results["count"] = 3
			return pc, nil
		},
	}
	b := pipeline.StepFunc{
		ID: "count-b",
		Fn: func(goCtx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
			pc.Results["count"] = 4
			return pc, nil
		},
	}

	p, err := pipeline.NewPipeline([]pipeline.Stage{
		pipeline.ParallelGroup(config.DefaultParallelConfig(), a, b),
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	result, err := p.Run(context.Background(), pipeline.NewContext(nil, nil))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Results["count"] != 7 {
		t.Errorf("expected summed count 7, got %v", result.Results["count"])
	}
}
