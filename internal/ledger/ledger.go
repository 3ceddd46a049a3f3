// Package ledger is the single source of truth mapping a submission
// reference id to its current processing stage. Writes are privileged,
// reads are public.
package ledger

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is the normal "no record yet" outcome of Get.
	ErrNotFound = errors.New("reference not found")
	// ErrUnauthorized rejects writes without the admin secret. It also
	// covers the unconfigured-secret case: the ledger fails closed.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument rejects writes with an empty ref or an
	// unrecognized stage.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Stage enumerates the submission lifecycle.
type Stage string

const (
	StageReceived          Stage = "Received"
	StageInProgress        Stage = "In Progress"
	StageAwaitingDocuments Stage = "Awaiting Documents"
	StageCompleted         Stage = "Completed"
	StageFiled             Stage = "Filed"
	StageAccepted          Stage = "Accepted"
	StageRejected          Stage = "Rejected"
)

var validStages = map[Stage]bool{
	StageReceived:          true,
	StageInProgress:        true,
	StageAwaitingDocuments: true,
	StageCompleted:         true,
	StageFiled:             true,
	StageAccepted:          true,
	StageRejected:          true,
}

// ValidStage reports whether s is one of the recognized lifecycle stages.
func ValidStage(s Stage) bool {
	return validStages[s]
}

// Record is the full status entry for one reference id. Every write
// replaces the whole record; there is no history.
type Record struct {
	Stage     Stage     `json:"stage"`
	Note      string    `json:"note,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store is the durable keyed backend. Put must be atomic per key: a
// concurrent Get observes either the prior record or the new one, never a
// mix.
type Store interface {
	Get(ctx context.Context, ref string) (*Record, error)
	Put(ctx context.Context, ref string, rec *Record) error
}

// CanonicalRef normalizes a reference id for storage keys and lookups.
func CanonicalRef(ref string) string {
	return strings.ToUpper(strings.TrimSpace(ref))
}

// Ledger wraps a Store with reference canonicalization, stage validation
// and the admin write gate.
type Ledger struct {
	store      Store
	adminToken string
}

// New constructs a Ledger. An empty adminToken leaves the write path
// permanently closed.
func New(store Store, adminToken string) *Ledger {
	return &Ledger{store: store, adminToken: adminToken}
}

// Get returns the current record for ref, or ErrNotFound.
func (l *Ledger) Get(ctx context.Context, ref string) (*Record, error) {
	key := CanonicalRef(ref)
	if key == "" {
		return nil, ErrNotFound
	}
	return l.store.Get(ctx, key)
}

// Upsert replaces the record for ref after checking the caller's token.
// No mutation happens on an authorization or validation failure.
func (l *Ledger) Upsert(ctx context.Context, ref string, stage Stage, note, token string) (*Record, error) {
	if l.adminToken == "" {
		return nil, ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(l.adminToken)) != 1 {
		return nil, ErrUnauthorized
	}
	return l.write(ctx, ref, stage, note)
}

// Initialize records the intake-time stage for a fresh reference. It is the
// system write used by the upload pipeline, not the admin path, so it does
// not take a token.
func (l *Ledger) Initialize(ctx context.Context, ref string) (*Record, error) {
	return l.write(ctx, ref, StageReceived, "")
}

func (l *Ledger) write(ctx context.Context, ref string, stage Stage, note string) (*Record, error) {
	key := CanonicalRef(ref)
	if key == "" {
		return nil, fmt.Errorf("%w: empty reference id", ErrInvalidArgument)
	}
	if stage == "" {
		return nil, fmt.Errorf("%w: empty stage", ErrInvalidArgument)
	}
	if !ValidStage(stage) {
		return nil, fmt.Errorf("%w: unknown stage %q", ErrInvalidArgument, stage)
	}
	rec := &Record{
		Stage:     stage,
		Note:      note,
		UpdatedAt: time.Now().UTC(),
	}
	if err := l.store.Put(ctx, key, rec); err != nil {
		return nil, fmt.Errorf("persist status for %s: %w", key, err)
	}
	return rec, nil
}
