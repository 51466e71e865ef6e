package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusHold/notify/internal/reporting/domain"
)

func TestLogger_WritesStructuredFailure(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(zerolog.New(&buf))

	err := l.Report(context.Background(), domain.Failure{
		Kind: domain.KindPartialFanout, Stage: domain.StageFanout, ClientID: "c1", CondominiumID: "d1",
		SourceEventID: "e1", ChunkIndex: 2, Recipients: []string{"u1", "u2"},
		Err: errors.New("write failed"), Time: time.Unix(0, 0),
	})
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "partial_fanout_failure", line["kind"])
	assert.Equal(t, "fanout_chunk", line["stage"])
	assert.Equal(t, "write failed", line["error"])
	assert.EqualValues(t, 2, line["chunk_index"])
	assert.EqualValues(t, 2, line["chunk_size"])
}

func TestLogger_OmitsChunkFieldsForStageFailures(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewLogger(zerolog.New(&buf)).Report(context.Background(),
		domain.Failure{Kind: domain.KindStorageWrite, Stage: domain.StagePersistEvent, ChunkIndex: -1, Err: errors.New("x")}))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	_, ok := line["chunk_index"]
	assert.False(t, ok)
}

type recordingReporter struct {
	got []domain.Failure
	err error
}

func (r *recordingReporter) Report(_ context.Context, f domain.Failure) error {
	r.got = append(r.got, f)
	return r.err
}

func TestMulti_ReportsToAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("ledger down")
	a, b := &recordingReporter{err: boom}, &recordingReporter{}
	err := Multi{a, nil, b}.Report(context.Background(), domain.Failure{Kind: domain.KindHandoff, Stage: domain.StageHandoff, ChunkIndex: -1})

	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}

func TestFailure_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("timeout")
	f := domain.Failure{Kind: domain.KindPartialFanout, ChunkIndex: 1, Err: cause}
	assert.Equal(t, "partial_fanout_failure chunk 1: timeout", f.Error())
	assert.ErrorIs(t, f, cause)

	f = domain.Failure{Kind: domain.KindStorageWrite, ChunkIndex: -1, Err: cause}
	assert.Equal(t, "storage_write_failure: timeout", f.Error())
}
