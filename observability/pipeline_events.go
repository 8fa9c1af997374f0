package observability

// Event types emitted by the pipeline execution engine. Grouped separately
// from any other subsystem's constants so each package can own its own event
// vocabulary while sharing the Observer/Event plumbing.
const (
	EventPipelineStart    EventType = "pipeline.start"
	EventPipelineComplete EventType = "pipeline.complete"

	EventStageStart    EventType = "stage.start"
	EventStageComplete EventType = "stage.complete"

	EventStepStart    EventType = "step.start"
	EventStepComplete EventType = "step.complete"

	EventGroupTimeout EventType = "group.timeout"
)
