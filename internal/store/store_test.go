package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/LdDl/headcount/internal/proof"
	"github.com/LdDl/headcount/internal/session"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	s, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	reference := 3
	record := SessionRecord{
		SessionID:        uuid.New(),
		Source:           "lecture.mp4",
		CreatedAt:        time.Unix(1700000000, 42),
		RobustCount:      3,
		UniqueIDs:        3,
		FramesProcessed:  125,
		MaxCount:         3,
		MeanCount:        2.5,
		DetectorFailures: 1,
		ProofImage:       "proof_persons_idx10_count3_1700000000.png",
		ReferenceCount:   &reference,
		Decision:         "ACCEPTED",
	}
	require.NoError(t, s.Insert(ctx, record))

	got, err := s.Get(ctx, record.SessionID)
	require.NoError(t, err)
	assert.True(t, record.CreatedAt.Equal(got.CreatedAt))
	got.CreatedAt = record.CreatedAt
	assert.Equal(t, record, got)
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ids := make([]uuid.UUID, 3)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, s.Insert(ctx, SessionRecord{
			SessionID:   ids[i],
			Source:      "cam",
			CreatedAt:   time.Unix(int64(1000+i), 0),
			RobustCount: i,
		}))
	}

	records, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, ids[2], records[0].SessionID)
	assert.Equal(t, ids[1], records[1].SessionID)
	assert.Empty(t, records[0].ProofImage)
	assert.Nil(t, records[0].ReferenceCount)

	none, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInMemoryStore(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Insert(context.Background(), SessionRecord{SessionID: uuid.New(), Source: "x", CreatedAt: time.Now()}))
	records, err := s.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestNewSessionRecord(t *testing.T) {
	result := &session.Result{
		SessionID:             uuid.New(),
		RobustCount:           2,
		UniqueLifetimeIDCount: 2,
		ProofRecord:           &proof.Record{ProofImageName: "proof.png"},
		Stats:                 session.Stats{FramesProcessed: 10, MaxCount: 2, MeanCount: 1.5, DetectorFailures: 1},
	}
	record := NewSessionRecord(result, "video.mp4", time.Unix(5, 0))
	assert.Equal(t, result.SessionID, record.SessionID)
	assert.Equal(t, "proof.png", record.ProofImage)
	assert.Equal(t, 10, record.FramesProcessed)
	assert.Equal(t, 1.5, record.MeanCount)

	empty := NewSessionRecord(&session.Result{SessionID: uuid.New()}, "video.mp4", time.Unix(5, 0))
	assert.Empty(t, empty.ProofImage)
}
