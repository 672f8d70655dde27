package storage

import (
	"context"
	"time"

	"github.com/louisbranch/rewind/internal/domain/age"
	"github.com/louisbranch/rewind/internal/domain/checkpoint"
	"github.com/louisbranch/rewind/internal/domain/event"
	"github.com/louisbranch/rewind/internal/domain/gamestate"
	"github.com/louisbranch/rewind/internal/domain/panel"
	"github.com/louisbranch/rewind/internal/domain/replay"
	apperrors "github.com/louisbranch/rewind/internal/platform/errors"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to differentiate between legitimate "no such record"
// states and transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrOutOfOrder indicates an append whose timestamp precedes the head of
// its game's stream, which would break the per-game total ordering.
var ErrOutOfOrder = apperrors.New(apperrors.CodeEventOutOfOrder, "event timestamp precedes the stream head")

// ErrCheckpointConflict indicates a second checkpoint write for an
// (entity, as-of) pair that already holds one.
var ErrCheckpointConflict = apperrors.New(apperrors.CodeCheckpointConflict, "checkpoint already exists for that instant")

// ErrPanelRowConflict indicates a second insert for a possession that
// already holds a panel row.
var ErrPanelRowConflict = apperrors.New(apperrors.CodePanelRowConflict, "panel row already exists for that possession")

// AppendOutcome pairs one event of a batch with its append result. A batch
// rejects only its offending events; Err is nil for the ones that landed.
type AppendOutcome struct {
	Event event.Event
	Err   error
}

// ListEventsPageRequest filters a time-ordered event listing. The zero
// value lists everything; PageToken restarts a prior listing.
type ListEventsPageRequest struct {
	GameID    string
	PlayerID  string
	Types     []event.Type
	From      time.Time
	To        time.Time
	PageSize  int
	PageToken string
}

// ListEventsPageResult carries one page and the token for the next.
// NextPageToken is empty on the final page.
type ListEventsPageResult struct {
	Events        []event.Event
	NextPageToken string
}

// EventStore owns the append-only event journal; this is the source of
// truth every checkpoint and panel row reconstructs from.
type EventStore interface {
	// AppendEvent atomically appends an event and returns it with
	// sequence and chain hashes assigned. Fails with ErrOutOfOrder when
	// the timestamp precedes the game's stream head.
	AppendEvent(ctx context.Context, evt event.Event) (event.Event, error)
	// AppendEvents appends a batch with partial-failure semantics: each
	// outcome carries either the stored event or that event's error.
	AppendEvents(ctx context.Context, events []event.Event) ([]AppendOutcome, error)
	// GetEventBySeq retrieves a specific event by game sequence.
	GetEventBySeq(ctx context.Context, gameID string, seq uint64) (event.Event, error)
	// ListEvents returns a replay stream slice in (timestamp, game, seq)
	// order after the cursor. It satisfies replay.EventStore.
	ListEvents(ctx context.Context, scope replay.Scope, cursor replay.Cursor, limit int) ([]event.Event, error)
	// ListEventsPage returns a filtered, restartable, time-ordered page.
	ListEventsPage(ctx context.Context, req ListEventsPageRequest) (ListEventsPageResult, error)
	// GetLatestEventSeq returns the latest sequence for a game, 0 when
	// the game has no events.
	GetLatestEventSeq(ctx context.Context, gameID string) (uint64, error)
	// GetStreamGenesis returns the timestamp of a stream's first event.
	// Fails with ErrNotFound when the stream is empty.
	GetStreamGenesis(ctx context.Context, scope replay.Scope) (time.Time, error)
	// VerifyGameChain walks a game's chain hashes and returns the number
	// of verified events.
	VerifyGameChain(ctx context.Context, gameID string) (uint64, error)
}

// GameCheckpoint freezes composite game state as of an instant.
type GameCheckpoint struct {
	GameID     string
	AsOf       time.Time
	Generation uint64
	LastSeq    uint64
	State      gamestate.State
}

// CheckpointStore persists derived checkpoints. Checkpoints are unique per
// (entity, generation, as-of); duplicate writes fail with
// ErrCheckpointConflict.
type CheckpointStore interface {
	SavePlayerCheckpoint(ctx context.Context, cp checkpoint.Checkpoint) error
	// LatestPlayerCheckpointAt returns the player checkpoint with the
	// greatest as-of at or before the instant within a generation.
	LatestPlayerCheckpointAt(ctx context.Context, playerID string, generation uint64, at time.Time) (checkpoint.Checkpoint, error)
	// ListPlayerCheckpoints returns a player's checkpoints in as-of order.
	ListPlayerCheckpoints(ctx context.Context, playerID string, generation uint64, limit int) ([]checkpoint.Checkpoint, error)

	SaveGameCheckpoint(ctx context.Context, cp GameCheckpoint) error
	LatestGameCheckpointAt(ctx context.Context, gameID string, generation uint64, at time.Time) (GameCheckpoint, error)

	// PruneCheckpoints drops an entity's checkpoints from generations
	// older than the given one.
	PruneCheckpoints(ctx context.Context, kind MarkKind, entityID string, beforeGeneration uint64) error
}

// Bio is slow-changing reference data for one player. Pointer fields stay
// nil when unknown; a zero is a real observation.
type Bio struct {
	PlayerID       string
	FullName       string
	BirthDate      time.Time
	BirthPrecision age.Precision
	Country        string
	// Position is the listed position (PG, SG, SF, PF, C), empty when unknown.
	Position  string
	HeightCM  *int64
	WeightKG  *int64
	UpdatedAt time.Time
}

// BirthInstant adapts the bio's birth fields for duration math.
func (b Bio) BirthInstant() age.Instant {
	return age.Instant{Time: b.BirthDate, Precision: b.BirthPrecision}
}

// BioStore persists reference entities, updated out-of-band by ingestion.
type BioStore interface {
	SaveBio(ctx context.Context, bio Bio) error
	GetBio(ctx context.Context, playerID string) (Bio, error)
}

// PanelStore persists possession feature rows keyed by
// (game, possession seq).
type PanelStore interface {
	// InsertPanelRow creates a row, failing with ErrPanelRowConflict when
	// the possession already has one.
	InsertPanelRow(ctx context.Context, row panel.Row) error
	// ReplacePanelRow upserts a row wholesale. Rebuilds use this.
	ReplacePanelRow(ctx context.Context, row panel.Row) error
	GetPanelRow(ctx context.Context, gameID string, possessionSeq uint64) (panel.Row, error)
	ListPanelRows(ctx context.Context, gameID string, limit int) ([]panel.Row, error)
	// BackfillPanelColumn updates exactly one covariate column of one
	// row, leaving every other column untouched. A nil value resets the
	// column to unknown.
	BackfillPanelColumn(ctx context.Context, gameID string, possessionSeq uint64, column string, value *float64) error
}

// MarkKind distinguishes the entity families that carry generation marks.
type MarkKind string

const (
	// MarkPlayer marks player checkpoint streams.
	MarkPlayer MarkKind = "player"
	// MarkGame marks game checkpoint and panel builds.
	MarkGame MarkKind = "game"
)

// EntityMark is the per-entity build ledger: the generation readers should
// observe, how far derived state has been built, and the retry and lease
// state guarding regeneration.
type EntityMark struct {
	Kind     MarkKind
	EntityID string
	// ActiveGeneration is the checkpoint generation queries read from.
	ActiveGeneration uint64
	// LastEventAt is the newest event time ingested for the entity.
	LastEventAt time.Time
	// BuiltThrough, BuiltGameID and BuiltSeq form the composite cursor
	// derived state has reached.
	BuiltThrough time.Time
	BuiltGameID  string
	BuiltSeq     uint64
	// Attempts and NextRetryAt drive per-entity backoff.
	Attempts    int
	NextRetryAt time.Time
	// LeaseOwner and LeaseUntil serialize builders per entity.
	LeaseOwner string
	LeaseUntil time.Time
	UpdatedAt  time.Time
}

// MarkStore persists entity marks.
type MarkStore interface {
	GetEntityMark(ctx context.Context, kind MarkKind, entityID string) (EntityMark, error)
	SaveEntityMark(ctx context.Context, mark EntityMark) error
	// TouchEntityMark records fresh ingest for an entity, creating the
	// mark on first sight and advancing LastEventAt.
	TouchEntityMark(ctx context.Context, kind MarkKind, entityID string, eventAt time.Time) error
	// ListDueEntityMarks returns marks with unbuilt events whose retry
	// and lease windows have passed.
	ListDueEntityMarks(ctx context.Context, kind MarkKind, now time.Time, limit int) ([]EntityMark, error)
	// ClaimEntityMark takes the build lease when it is free. It fails
	// with ErrNotFound when the mark is missing or still leased.
	ClaimEntityMark(ctx context.Context, kind MarkKind, entityID, owner string, now time.Time, leaseFor time.Duration) (EntityMark, error)
}

// Store is a composite interface for all persistence concerns used across
// ingestion, checkpoint builds, and queries.
type Store interface {
	EventStore
	CheckpointStore
	BioStore
	PanelStore
	MarkStore
	Close() error
}
