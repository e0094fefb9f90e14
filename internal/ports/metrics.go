package ports

import "time"

type Metrics interface {
	RecomputePass(elapsed time.Duration)
	LoadCompleted(elapsed time.Duration)
	FetchFailed(operation string)
}
