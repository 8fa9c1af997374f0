package pipeline

import "github.com/tailored-agentic-units/pipeline-engine/pipeline/config"

// StageKind distinguishes the two stage variants. Nested parallel groups are
// not supported — a Stage is either one step or a flat set of steps.
type StageKind int

const (
	StageSingle StageKind = iota
	StageParallel
)

// Stage is one element of a pipeline.
type Stage struct {
	Kind  StageKind
	Step  Step             // populated when Kind == StageSingle
	Steps []Step           // populated when Kind == StageParallel, len >= 2
	Group config.ParallelConfig
}

// Single builds a Stage running one step.
func Single(step Step) Stage {
	return Stage{Kind: StageSingle, Step: step}
}

// ParallelGroup builds a Stage running steps concurrently under cfg. Fewer
// than two steps is a construction-time error surfaced by NewPipeline, not
// here, so stages can still be built and inspected before validation runs.
func ParallelGroup(cfg config.ParallelConfig, steps ...Step) Stage {
	return Stage{Kind: StageParallel, Steps: steps, Group: cfg}
}

// stepIDs returns every step id this stage will run, in declared order.
func (s Stage) stepIDs() []string {
	if s.Kind == StageSingle {
		if s.Step == nil {
			return nil
		}
		return []string{s.Step.StepID()}
	}
	ids := make([]string, len(s.Steps))
	for i, step := range s.Steps {
		ids[i] = step.StepID()
	}
	return ids
}
