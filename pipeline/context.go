package pipeline

// ErrorPhase identifies which part of execution produced an ErrorRecord.
type ErrorPhase string

const (
	PhaseRun     ErrorPhase = "RUN"
	PhaseTimeout ErrorPhase = "TIMEOUT"
	PhaseGroup   ErrorPhase = "GROUP"
)

// ErrorRecord is one accumulated failure. Context.Errors is an ordered
// sequence of these; a step sees the records left by earlier stages, but not
// those of sibling branches in its own parallel stage.
type ErrorRecord struct {
	StepID   string
	Message  string
	Critical bool
	Phase    ErrorPhase
}

// ProgressSetter is the bound callback a running step calls to report how
// far inside its own work it has progressed. Context.UpdateStepProgress is
// rebound by the executor on stage entry and reverted to a no-op afterward.
type ProgressSetter func(percent float64)

func noopProgressSetter(float64) {}

// Context is the mutable carrier passed into every step and returned by it.
// AppConfig and Logger are opaque references the engine never inspects;
// Results, Errors, and StepStatuses accumulate as the pipeline runs.
type Context struct {
	AppConfig any
	Logger    any

	Results      map[string]any
	Errors       []ErrorRecord
	StepStatuses map[string]StepStatus

	// UpdateStepProgress is a no-op until a step begins running; the
	// orchestrator rebinds it to the current step's status slot on stage
	// entry and restores the no-op once the step returns.
	UpdateStepProgress ProgressSetter
}

// NewContext builds an empty Context ready to hand to Pipeline.Run.
// appConfig and logger are carried through opaque to the engine.
func NewContext(appConfig, logger any) *Context {
	return &Context{
		AppConfig:          appConfig,
		Logger:             logger,
		Results:            make(map[string]any),
		Errors:             make([]ErrorRecord, 0),
		StepStatuses:       make(map[string]StepStatus),
		UpdateStepProgress: noopProgressSetter,
	}
}

// shallowCopy duplicates the mutable containers (results, errors, per-step
// status view) while sharing AppConfig/Logger by reference, per the engine's
// context-isolation contract: branches must not observe each other's writes,
// but opaque caller state is never cloned. Only the containers are copied:
// a slice or map stored as a Results value is shared with the original.
func (c *Context) shallowCopy() *Context {
	results := make(map[string]any, len(c.Results))
	for k, v := range c.Results {
		results[k] = v
	}

	errs := make([]ErrorRecord, len(c.Errors))
	copy(errs, c.Errors)

	statuses := make(map[string]StepStatus, len(c.StepStatuses))
	for k, v := range c.StepStatuses {
		statuses[k] = v
	}

	return &Context{
		AppConfig:          c.AppConfig,
		Logger:             c.Logger,
		Results:            results,
		Errors:             errs,
		StepStatuses:       statuses,
		UpdateStepProgress: noopProgressSetter,
	}
}
