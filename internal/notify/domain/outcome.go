package domain

import "errors"

// ErrPartialFanout is returned when some fan-out chunks failed after others
// committed. Committed chunks stay visible.
var ErrPartialFanout = errors.New("partial fan-out")

// OutcomeStatus is how one emission ended.
type OutcomeStatus string

const (
	OutcomeSkippedNoIdentity OutcomeStatus = "skipped_no_identity"
	OutcomeSkippedDuplicate  OutcomeStatus = "skipped_duplicate"
	OutcomeDeferred          OutcomeStatus = "deferred"
	OutcomeDispatched        OutcomeStatus = "dispatched"
	OutcomeFailed            OutcomeStatus = "failed"
)

// Outcome summarises one pass through the dispatch pipeline.
type Outcome struct {
	Status          OutcomeStatus
	EventID         string
	QueueID         string
	Recipients      int
	ChunksCommitted int
	ChunksFailed    int
}

// Store is the union of the persistence ports the dispatcher writes to.
type Store interface {
	EventRepository
	QueueRepository
	FeedRepository
}
