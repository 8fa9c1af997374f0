package pipeline

// ProgressCallback is invoked after each stage completes, with the
// zero-based stage index, total stage count, the stage's last-declared step
// id (the single step, or a parallel group's last branch regardless of which
// branch finished last), and the overall progress percent at that instant.
type ProgressCallback func(stageIndex, totalStages int, lastStepID string, overallProgress float64)

func noopProgressCallback(int, int, string, float64) {}

// BindProgress adapts a bare percent-callback so internal code can call it
// unconditionally: when callback is nil, a no-op is returned instead. This
// is the engine's equivalent of the with_progress_callback utility wrapper —
// any step author writing a helper that takes a `progress func(float64)`
// parameter can use it the same way.
func BindProgress(callback func(percent float64)) func(percent float64) {
	if callback == nil {
		return func(float64) {}
	}
	return callback
}
