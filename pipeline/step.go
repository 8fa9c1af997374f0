package pipeline

import (
	"context"
	"time"
)

// Step is the contract every pipeline unit of work satisfies. The engine
// only ever sees this interface — concrete steps are entirely user-supplied.
//
// Implementations may be thin structs, a struct embedding BaseStep with a
// function field, or closures wrapped in StepFunc; the engine requires only
// that StepID/Description/Critical/declared metadata are readable without
// side effects and that Run is invoked exactly once per pipeline occurrence.
type Step interface {
	// StepID is a non-empty identifier, expected unique within a pipeline.
	// Used as the key for status and result lookup.
	StepID() string

	// Description is a human-readable summary of what the step does.
	Description() string

	// Critical reports whether this step's failure can abort the pipeline
	// under fail-fast. Non-critical steps never abort the pipeline.
	Critical() bool

	// DeclaredTimeout returns the step's self-reported timeout and whether
	// one was declared. It is recorded on the step only: GetStatus does not
	// report it, and the engine never enforces it.
	DeclaredTimeout() (timeout time.Duration, declared bool)

	// DeclaredRetries returns the step's self-reported retry count. Declared
	// only; the engine does not retry a failed step.
	DeclaredRetries() int

	// Run performs the step's work against ctx and returns the (possibly
	// same) context. Run may mutate ctx in place or return a new one — the
	// engine uses whatever it returns. Run signals failure by returning a
	// non-nil error; a nil error means success regardless of ctx.Errors.
	Run(goCtx context.Context, pc *Context) (*Context, error)
}

// StepFunc adapts a plain function to the Step interface for the common case
// of a step with no declared timeout/retries and default criticality, the
// same way http.HandlerFunc adapts a function to http.Handler.
type StepFunc struct {
	ID      string
	Desc    string
	Fn      func(goCtx context.Context, pc *Context) (*Context, error)
	NonCrit bool // true makes Critical() return false; default is critical
	Timeout time.Duration
	HasTmo  bool
	Retries int
}

func (f StepFunc) StepID() string       { return f.ID }
func (f StepFunc) Description() string  { return f.Desc }
func (f StepFunc) Critical() bool       { return !f.NonCrit }
func (f StepFunc) DeclaredRetries() int { return f.Retries }

func (f StepFunc) DeclaredTimeout() (time.Duration, bool) {
	return f.Timeout, f.HasTmo
}

func (f StepFunc) Run(goCtx context.Context, pc *Context) (*Context, error) {
	return f.Fn(goCtx, pc)
}

// BaseStep is an embeddable struct implementing the declared-metadata half of
// Step, following the *bool-plus-accessor convention used throughout this
// module's configuration types: IsCritical distinguishes "unset" (default
// true) from an explicit false.
type BaseStep struct {
	ID         string
	Desc       string
	IsCritical *bool
	Timeout    *time.Duration
	Retries    int
}

func (b BaseStep) StepID() string      { return b.ID }
func (b BaseStep) Description() string { return b.Desc }

func (b BaseStep) Critical() bool {
	if b.IsCritical == nil {
		return true
	}
	return *b.IsCritical
}

func (b BaseStep) DeclaredTimeout() (time.Duration, bool) {
	if b.Timeout == nil {
		return 0, false
	}
	return *b.Timeout, true
}

func (b BaseStep) DeclaredRetries() int {
	return b.Retries
}
