package domain

// IterationSummary describes one pass of the cleanup loop.
type IterationSummary struct {
	Iteration    int
	DriveID      string
	Capacity     Capacity
	Listed       int
	RemovedBytes int64
	Failed       int
	DryRun       bool
}
