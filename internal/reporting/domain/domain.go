package domain

import (
	"context"
	"fmt"
	"time"
)

// Kind classifies a failure.
type Kind string

const (
	KindDirectoryQuery   Kind = "directory_query_failure"
	KindStorageWrite     Kind = "storage_write_failure"
	KindPartialFanout    Kind = "partial_fanout_failure"
	KindHandoff          Kind = "handoff_failure"
	KindFeedSubscription Kind = "feed_subscription_failure"
	KindInvalidEvent     Kind = "invalid_event"
)

// Stage names the pipeline step a failure happened in.
type Stage string

const (
	StageCatalog      Stage = "catalog"
	StagePersistEvent Stage = "persist_event"
	StageResolve      Stage = "resolve_audience"
	StagePersistQueue Stage = "persist_queue"
	StageFanout       Stage = "fanout_chunk"
	StageHandoff      Stage = "handoff"
	StageFeed         Stage = "feed"
)

// Failure is a reportable pipeline failure. ChunkIndex is -1 unless Kind is
// KindPartialFanout, in which case Recipients lists the recipients of the
// uncommitted chunk.
type Failure struct {
	Kind          Kind
	Stage         Stage
	ClientID      string
	CondominiumID string
	EventType     string
	SourceEventID string
	SourceQueueID string
	ChunkIndex    int
	Recipients    []string
	Err           error
	Time          time.Time
}

func (f Failure) Error() string {
	if f.ChunkIndex >= 0 {
		return fmt.Sprintf("%s chunk %d: %v", f.Kind, f.ChunkIndex, f.Err)
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Reporter records failures to an external sink (log, ledger table, ...).
type Reporter interface {
	Report(ctx context.Context, f Failure) error
}
