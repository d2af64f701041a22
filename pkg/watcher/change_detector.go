package watcher

// ChangeAnalysis describes what a batch of changes requires
type ChangeAnalysis struct {
	Recompile    bool     // at least one flow must be compiled again
	Rerun        bool     // the recompiled script should be executed
	Lost         []string // watched flows that no longer exist
	ChangedFiles []string
}

// AnalyzeChanges decides what to redo for a debounced event. Runs are only
// repeated when the caller asked for them and something was recompiled.
func AnalyzeChanges(event ChangeEvent, runOnChange bool) *ChangeAnalysis {
	analysis := &ChangeAnalysis{}

	switch event.Type {
	case ChangeTypeFlow:
		analysis.Recompile = len(event.Paths) > 0
		analysis.Rerun = runOnChange && analysis.Recompile
		analysis.ChangedFiles = event.Paths

	case ChangeTypeRemoved:
		// keep serving the last good compilation
		analysis.Lost = event.Paths
	}

	return analysis
}
