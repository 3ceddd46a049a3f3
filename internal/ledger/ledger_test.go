package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "topsecret"

func newTestLedger() *Ledger {
	return New(NewMemoryStore(), testToken)
}

func TestUpsertThenGet(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	start := time.Now().UTC()

	rec, err := l.Upsert(ctx, " tl-1234 ", StageInProgress, "W-2 received", testToken)
	require.NoError(t, err)
	assert.Equal(t, StageInProgress, rec.Stage)
	assert.False(t, rec.UpdatedAt.Before(start))

	// Lookup canonicalizes the same way, so a differently cased ref hits
	// the same record.
	got, err := l.Get(ctx, "TL-1234")
	require.NoError(t, err)
	assert.Equal(t, StageInProgress, got.Stage)
	assert.Equal(t, "W-2 received", got.Note)
	assert.Equal(t, rec.UpdatedAt, got.UpdatedAt)
}

func TestGetUnknownRef(t *testing.T) {
	l := newTestLedger()
	_, err := l.Get(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertReplacesWholeRecord(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	_, err := l.Upsert(ctx, "REF1", StageInProgress, "first note", testToken)
	require.NoError(t, err)
	_, err = l.Upsert(ctx, "REF1", StageCompleted, "", testToken)
	require.NoError(t, err)

	got, err := l.Get(ctx, "REF1")
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, got.Stage)
	assert.Equal(t, "", got.Note, "note from the prior write must not survive")
}

func TestUpsertAuthorization(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	_, err := l.Upsert(ctx, "REF1", StageReceived, "", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = l.Upsert(ctx, "REF1", StageReceived, "", "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Unconfigured secret fails closed even with a matching empty token.
	open := New(NewMemoryStore(), "")
	_, err = open.Upsert(ctx, "REF1", StageReceived, "", "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Nothing was written on any of the failed attempts.
	_, err = l.Get(ctx, "REF1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertValidation(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	_, err := l.Upsert(ctx, "REF1", StageReceived, "", testToken)
	require.NoError(t, err)

	_, err = l.Upsert(ctx, "", StageCompleted, "", testToken)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = l.Upsert(ctx, "REF1", "", "", testToken)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = l.Upsert(ctx, "REF1", Stage("Shipped"), "", testToken)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// The rejected writes left the existing record alone.
	got, err := l.Get(ctx, "REF1")
	require.NoError(t, err)
	assert.Equal(t, StageReceived, got.Stage)
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	rec, err := l.Initialize(ctx, "tl-55")
	require.NoError(t, err)
	assert.Equal(t, StageReceived, rec.Stage)

	got, err := l.Get(ctx, "TL-55")
	require.NoError(t, err)
	assert.Equal(t, StageReceived, got.Stage)
}

func TestConcurrentUpsertsDistinctRefs(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref := fmt.Sprintf("REF-%03d", i)
			_, err := l.Upsert(ctx, ref, StageInProgress, fmt.Sprintf("note %d", i), testToken)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// No write may be lost.
	for i := 0; i < n; i++ {
		got, err := l.Get(ctx, fmt.Sprintf("REF-%03d", i))
		require.NoError(t, err)
		assert.Equal(t, StageInProgress, got.Stage)
		assert.Equal(t, fmt.Sprintf("note %d", i), got.Note)
	}
}
