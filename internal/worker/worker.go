// Package worker builds derived state behind the append-only journal:
// player and game checkpoints at the configured cadence, plus one panel row
// per completed possession.
//
// A poll loop claims due entities from the mark ledger under a short lease,
// extends the active generation forward from the latest checkpoint, and
// publishes the advanced build cursor when it releases the mark. Failures
// back off per entity, so one bad stream never stalls the rest. Full
// rebuilds regenerate an entity from its first event into the next
// generation and flip readers over in a single marker write.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/louisbranch/rewind/internal/domain/age"
	"github.com/louisbranch/rewind/internal/domain/checkpoint"
	"github.com/louisbranch/rewind/internal/domain/gamestate"
	"github.com/louisbranch/rewind/internal/domain/panel"
	"github.com/louisbranch/rewind/internal/domain/replay"
	"github.com/louisbranch/rewind/internal/storage"
)

const (
	// DefaultInterval spaces poll cycles.
	DefaultInterval = 5 * time.Second
	// DefaultLeaseFor bounds one entity build; a crashed builder frees its
	// entity when the lease lapses.
	DefaultLeaseFor = 5 * time.Minute
	// buildPageSize bounds each store read during a stream walk.
	buildPageSize = 500
	// dueLimit bounds how many entities of one kind a cycle claims.
	dueLimit = 50
	// maxRetryBackoff caps the doubling retry delay.
	maxRetryBackoff = 5 * time.Minute
	// parkAttempts is the failure count past which an entity stops doubling
	// and retries on the slow parked schedule until a build succeeds.
	parkAttempts = 10
	// parkedBackoff is the retry spacing for parked entities.
	parkedBackoff = time.Hour
)

// Required-dependency errors.
var (
	// ErrEventStoreRequired indicates a missing event store.
	ErrEventStoreRequired = errors.New("event store is required")
	// ErrCheckpointStoreRequired indicates a missing checkpoint store.
	ErrCheckpointStoreRequired = errors.New("checkpoint store is required")
	// ErrMarkStoreRequired indicates a missing mark store.
	ErrMarkStoreRequired = errors.New("mark store is required")
	// ErrBioStoreRequired indicates a missing bio store.
	ErrBioStoreRequired = errors.New("bio store is required")
	// ErrPanelStoreRequired indicates a missing panel store.
	ErrPanelStoreRequired = errors.New("panel store is required")
)

// Worker drives checkpoint and panel builds off the entity mark ledger.
type Worker struct {
	// Events is the append-only journal builds fold from.
	Events storage.EventStore
	// Checkpoints persists the frozen snapshots builds emit.
	Checkpoints storage.CheckpointStore
	// Marks is the per-entity ledger of build cursors, leases and retries.
	Marks storage.MarkStore
	// Bios supplies birth dates for panel age enrichment.
	Bios storage.BioStore
	// Panel persists possession feature rows.
	Panel storage.PanelStore

	// Policy is the checkpoint cadence. The zero value means the default
	// every-N policy.
	Policy checkpoint.Policy
	// Owner names this process on mark leases.
	Owner string
	// Interval overrides the poll spacing for Run.
	Interval time.Duration
	// LeaseFor overrides the build lease length.
	LeaseFor time.Duration
	// Now returns the current time; nil means time.Now.
	Now func() time.Time
}

// Run polls for due entities until the context ends. It builds once up
// front so a fresh worker drains its backlog without waiting out the first
// tick.
func (w *Worker) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	cycle := func() {
		built, err := w.RunCycle(ctx)
		if err != nil {
			log.Printf("build cycle failed: %v", err)
			return
		}
		if built > 0 {
			log.Printf("built %d entities", built)
		}
	}

	cycle()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cycle()
		}
	}
}

// RunCycle claims and builds every due entity once, returning how many
// advanced. A failed entity records its retry on the mark and is skipped;
// only listing failures abort the cycle.
func (w *Worker) RunCycle(ctx context.Context) (int, error) {
	if err := w.check(); err != nil {
		return 0, err
	}
	built := 0
	for _, kind := range []storage.MarkKind{storage.MarkPlayer, storage.MarkGame} {
		marks, err := w.Marks.ListDueEntityMarks(ctx, kind, w.now(), dueLimit)
		if err != nil {
			return built, fmt.Errorf("list due %s marks: %w", kind, err)
		}
		for _, mark := range marks {
			advanced, err := w.buildOne(ctx, kind, mark.EntityID)
			if err != nil {
				log.Printf("build %s %s failed: %v", kind, mark.EntityID, err)
				continue
			}
			if advanced {
				built++
			}
		}
	}
	return built, nil
}

// RebuildPlayer regenerates a player's checkpoints from the first event
// into the next generation, flips readers to it, and prunes the old rows.
// The active generation stays in place until the new one is complete, so a
// failed rebuild leaves readers untouched.
func (w *Worker) RebuildPlayer(ctx context.Context, playerID string) error {
	if err := w.check(); err != nil {
		return err
	}
	mark, err := w.Marks.ClaimEntityMark(ctx, storage.MarkPlayer, playerID, w.owner(), w.now(), w.leaseFor())
	if err != nil {
		return fmt.Errorf("claim player mark %s: %w", playerID, err)
	}
	generation := activeGeneration(mark) + 1

	emitter := checkpoint.NewEmitter(w.policy())
	_, cursor, err := w.walkPlayer(ctx, playerID, generation, checkpoint.State{}, replay.Cursor{}, emitter)
	if err != nil {
		if retryErr := w.recordRetry(ctx, mark); retryErr != nil {
			return fmt.Errorf("record retry after %v: %w", err, retryErr)
		}
		return err
	}

	mark.ActiveGeneration = generation
	setBuiltCursor(&mark, cursor)
	if err := w.release(ctx, mark); err != nil {
		return fmt.Errorf("flip player %s to generation %d: %w", playerID, generation, err)
	}
	if err := w.Checkpoints.PruneCheckpoints(ctx, storage.MarkPlayer, playerID, generation); err != nil {
		return fmt.Errorf("prune player %s checkpoints before generation %d: %w", playerID, generation, err)
	}
	return nil
}

// RebuildGame regenerates a game's checkpoints and panel rows from the
// first event into the next generation. Panel rows are replaced wholesale,
// so covariates backfilled against the old rows reset to unknown except the
// ones recomputed here.
func (w *Worker) RebuildGame(ctx context.Context, gameID string) error {
	if err := w.check(); err != nil {
		return err
	}
	mark, err := w.Marks.ClaimEntityMark(ctx, storage.MarkGame, gameID, w.owner(), w.now(), w.leaseFor())
	if err != nil {
		return fmt.Errorf("claim game mark %s: %w", gameID, err)
	}
	generation := activeGeneration(mark) + 1

	emitter := checkpoint.NewEmitter(w.policy())
	_, cursor, err := w.walkGame(ctx, gameID, generation, gamestate.State{}, replay.Cursor{}, emitter)
	if err == nil {
		err = w.buildPanel(ctx, gameID, true)
	}
	if err != nil {
		if retryErr := w.recordRetry(ctx, mark); retryErr != nil {
			return fmt.Errorf("record retry after %v: %w", err, retryErr)
		}
		return err
	}

	mark.ActiveGeneration = generation
	setBuiltCursor(&mark, cursor)
	if err := w.release(ctx, mark); err != nil {
		return fmt.Errorf("flip game %s to generation %d: %w", gameID, generation, err)
	}
	if err := w.Checkpoints.PruneCheckpoints(ctx, storage.MarkGame, gameID, generation); err != nil {
		return fmt.Errorf("prune game %s checkpoints before generation %d: %w", gameID, generation, err)
	}
	return nil
}

// buildOne claims an entity and advances its derived state. A lost claim is
// not an error; another builder holds the lease.
func (w *Worker) buildOne(ctx context.Context, kind storage.MarkKind, entityID string) (bool, error) {
	mark, err := w.Marks.ClaimEntityMark(ctx, kind, entityID, w.owner(), w.now(), w.leaseFor())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("claim %s mark %s: %w", kind, entityID, err)
	}

	var buildErr error
	switch kind {
	case storage.MarkPlayer:
		mark, buildErr = w.buildPlayer(ctx, mark)
	case storage.MarkGame:
		mark, buildErr = w.buildGame(ctx, mark)
	default:
		buildErr = fmt.Errorf("unknown mark kind %q", kind)
	}
	if buildErr != nil {
		if err := w.recordRetry(ctx, mark); err != nil {
			return false, fmt.Errorf("record retry after %v: %w", buildErr, err)
		}
		return false, buildErr
	}
	if err := w.release(ctx, mark); err != nil {
		return false, fmt.Errorf("release %s mark %s: %w", kind, entityID, err)
	}
	return true, nil
}

// buildPlayer extends a player's checkpoint stream within the active
// generation, resuming from the newest checkpoint so only the delta behind
// it folds again.
func (w *Worker) buildPlayer(ctx context.Context, mark storage.EntityMark) (storage.EntityMark, error) {
	generation := activeGeneration(mark)
	mark.ActiveGeneration = generation

	state := checkpoint.State{}
	cursor := replay.Cursor{}
	emitter := checkpoint.NewEmitter(w.policy())

	base, err := w.Checkpoints.LatestPlayerCheckpointAt(ctx, mark.EntityID, generation, mark.LastEventAt)
	switch {
	case err == nil:
		state = base.ResumeState()
		cursor = replay.Cursor{After: base.AsOf, GameID: base.LastGameID, Seq: base.LastSeq}
		emitter.MarkEmitted(base.AsOf)
	case errors.Is(err, storage.ErrNotFound):
		// Cold start folds from the stream's first event.
	default:
		return mark, fmt.Errorf("latest checkpoint for player %s: %w", mark.EntityID, err)
	}

	_, cursor, err = w.walkPlayer(ctx, mark.EntityID, generation, state, cursor, emitter)
	if err != nil {
		return mark, err
	}
	setBuiltCursor(&mark, cursor)
	return mark, nil
}

// buildGame extends a game's checkpoint stream within the active generation
// and tops up the game's panel rows for possessions completed since.
func (w *Worker) buildGame(ctx context.Context, mark storage.EntityMark) (storage.EntityMark, error) {
	generation := activeGeneration(mark)
	mark.ActiveGeneration = generation

	state := gamestate.State{}
	cursor := replay.Cursor{}
	emitter := checkpoint.NewEmitter(w.policy())

	base, err := w.Checkpoints.LatestGameCheckpointAt(ctx, mark.EntityID, generation, mark.LastEventAt)
	switch {
	case err == nil:
		state = base.State
		cursor = replay.Cursor{After: base.AsOf, GameID: base.GameID, Seq: base.LastSeq}
		emitter.MarkEmitted(base.AsOf)
	case errors.Is(err, storage.ErrNotFound):
	default:
		return mark, fmt.Errorf("latest checkpoint for game %s: %w", mark.EntityID, err)
	}

	_, cursor, err = w.walkGame(ctx, mark.EntityID, generation, state, cursor, emitter)
	if err != nil {
		return mark, err
	}
	if err := w.buildPanel(ctx, mark.EntityID, false); err != nil {
		return mark, err
	}
	setBuiltCursor(&mark, cursor)
	return mark, nil
}

// walkPlayer folds a player's events after the cursor, freezing checkpoints
// where the cadence fires. The per-game cadence additionally freezes the
// carried state right before the stream crosses into another game.
func (w *Worker) walkPlayer(ctx context.Context, playerID string, generation uint64, state checkpoint.State, cursor replay.Cursor, emitter *checkpoint.Emitter) (checkpoint.State, replay.Cursor, error) {
	scope := replay.Scope{PlayerID: playerID}
	for {
		events, err := w.Events.ListEvents(ctx, scope, cursor, buildPageSize)
		if err != nil {
			return state, cursor, fmt.Errorf("list events for player %s: %w", playerID, err)
		}
		if len(events) == 0 {
			return state, cursor, nil
		}
		for _, evt := range events {
			if emitter.BoundaryBeforeFold(evt) {
				if err := w.freezePlayer(ctx, playerID, state.LastTimestamp, generation, state, emitter); err != nil {
					return state, cursor, err
				}
			}
			next, err := checkpoint.Fold(state, evt)
			if err != nil {
				return state, cursor, err
			}
			state = next
			cursor = replay.Cursor{After: evt.Timestamp, GameID: evt.GameID, Seq: evt.Seq}
			if emitter.EmitAfterFold(evt) {
				if err := w.freezePlayer(ctx, playerID, evt.Timestamp, generation, state, emitter); err != nil {
					return state, cursor, err
				}
			}
		}
		if len(events) < buildPageSize {
			return state, cursor, nil
		}
	}
}

// walkGame folds one game's events after the cursor, freezing checkpoints
// where the cadence fires. A single game never crosses a game boundary, so
// only the after-fold trigger applies.
func (w *Worker) walkGame(ctx context.Context, gameID string, generation uint64, state gamestate.State, cursor replay.Cursor, emitter *checkpoint.Emitter) (gamestate.State, replay.Cursor, error) {
	scope := replay.Scope{GameID: gameID}
	for {
		events, err := w.Events.ListEvents(ctx, scope, cursor, buildPageSize)
		if err != nil {
			return state, cursor, fmt.Errorf("list events for game %s: %w", gameID, err)
		}
		if len(events) == 0 {
			return state, cursor, nil
		}
		for _, evt := range events {
			next, err := gamestate.Fold(state, evt)
			if err != nil {
				return state, cursor, err
			}
			state = next
			cursor = replay.Cursor{After: evt.Timestamp, GameID: evt.GameID, Seq: evt.Seq}
			if emitter.EmitAfterFold(evt) {
				if err := w.freezeGame(ctx, gameID, evt.Timestamp, generation, state, emitter); err != nil {
					return state, cursor, err
				}
			}
		}
		if len(events) < buildPageSize {
			return state, cursor, nil
		}
	}
}

// freezePlayer saves a checkpoint at asOf. A conflict means a prior run
// already froze this instant; restarts legitimately replay over it.
func (w *Worker) freezePlayer(ctx context.Context, playerID string, asOf time.Time, generation uint64, state checkpoint.State, emitter *checkpoint.Emitter) error {
	cp := checkpoint.New(playerID, asOf, generation, state)
	err := w.Checkpoints.SavePlayerCheckpoint(ctx, cp)
	if err != nil && !errors.Is(err, storage.ErrCheckpointConflict) {
		return fmt.Errorf("save checkpoint for player %s at %s: %w", playerID, asOf.Format(time.RFC3339Nano), err)
	}
	emitter.MarkEmitted(asOf)
	return nil
}

// freezeGame saves a game checkpoint at asOf, tolerating conflicts the same
// way freezePlayer does.
func (w *Worker) freezeGame(ctx context.Context, gameID string, asOf time.Time, generation uint64, state gamestate.State, emitter *checkpoint.Emitter) error {
	cp := storage.GameCheckpoint{
		GameID:     gameID,
		AsOf:       asOf,
		Generation: generation,
		LastSeq:    state.LastSeq,
		State:      state,
	}
	err := w.Checkpoints.SaveGameCheckpoint(ctx, cp)
	if err != nil && !errors.Is(err, storage.ErrCheckpointConflict) {
		return fmt.Errorf("save checkpoint for game %s at %s: %w", gameID, asOf.Format(time.RFC3339Nano), err)
	}
	emitter.MarkEmitted(asOf)
	return nil
}

// buildPanel derives the game's panel rows from the full stream. Incremental
// builds insert rows and skip possessions that already hold one, preserving
// backfilled covariates; rebuilds replace rows wholesale.
func (w *Worker) buildPanel(ctx context.Context, gameID string, replace bool) error {
	builder := panel.NewBuilder()
	scope := replay.Scope{GameID: gameID}
	cursor := replay.Cursor{}
	for {
		events, err := w.Events.ListEvents(ctx, scope, cursor, buildPageSize)
		if err != nil {
			return fmt.Errorf("list events for game %s: %w", gameID, err)
		}
		if len(events) == 0 {
			break
		}
		for _, evt := range events {
			if err := builder.Apply(evt); err != nil {
				return fmt.Errorf("panel build for game %s: %w", gameID, err)
			}
			cursor = replay.Cursor{After: evt.Timestamp, GameID: evt.GameID, Seq: evt.Seq}
		}
		if len(events) < buildPageSize {
			break
		}
	}

	for _, row := range builder.Rows() {
		w.enrichRow(ctx, &row)
		if replace {
			if err := w.Panel.ReplacePanelRow(ctx, row); err != nil {
				return fmt.Errorf("replace panel row %s/%d: %w", row.GameID, row.PossessionSeq, err)
			}
			continue
		}
		err := w.Panel.InsertPanelRow(ctx, row)
		if errors.Is(err, storage.ErrPanelRowConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("insert panel row %s/%d: %w", row.GameID, row.PossessionSeq, err)
		}
	}
	return nil
}

// enrichRow fills the offense mean age covariate when every offense
// player's birth date is on file. A missing bio leaves the column unknown.
func (w *Worker) enrichRow(ctx context.Context, row *panel.Row) {
	if row.OffenseLineupKey == "" {
		return
	}
	members := strings.Split(row.OffenseLineupKey, "|")
	births := make([]age.Instant, 0, len(members))
	for _, playerID := range members {
		bio, err := w.Bios.GetBio(ctx, playerID)
		if err != nil {
			return
		}
		births = append(births, bio.BirthInstant())
	}
	row.OffenseMeanAgeYears = panel.MeanLineupAgeYears(births, row.StartTime)
}

// release publishes the advanced mark and frees the lease in one write.
func (w *Worker) release(ctx context.Context, mark storage.EntityMark) error {
	mark.Attempts = 0
	mark.NextRetryAt = time.Time{}
	mark.LeaseOwner = ""
	mark.LeaseUntil = time.Time{}
	return w.Marks.SaveEntityMark(ctx, mark)
}

// recordRetry schedules the next attempt and frees the lease. The built
// cursor stays where the last success left it.
func (w *Worker) recordRetry(ctx context.Context, mark storage.EntityMark) error {
	mark.Attempts++
	mark.NextRetryAt = w.now().Add(retryBackoff(mark.Attempts))
	mark.LeaseOwner = ""
	mark.LeaseUntil = time.Time{}
	return w.Marks.SaveEntityMark(ctx, mark)
}

func (w *Worker) check() error {
	if w.Events == nil {
		return ErrEventStoreRequired
	}
	if w.Checkpoints == nil {
		return ErrCheckpointStoreRequired
	}
	if w.Marks == nil {
		return ErrMarkStoreRequired
	}
	if w.Bios == nil {
		return ErrBioStoreRequired
	}
	if w.Panel == nil {
		return ErrPanelStoreRequired
	}
	return nil
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *Worker) policy() checkpoint.Policy {
	if w.Policy.Kind == "" {
		return checkpoint.DefaultPolicy()
	}
	return w.Policy
}

func (w *Worker) owner() string {
	if w.Owner != "" {
		return w.Owner
	}
	return "worker"
}

func (w *Worker) leaseFor() time.Duration {
	if w.LeaseFor > 0 {
		return w.LeaseFor
	}
	return DefaultLeaseFor
}

// activeGeneration normalizes an unbuilt mark to the first generation.
func activeGeneration(mark storage.EntityMark) uint64 {
	if mark.ActiveGeneration == 0 {
		return 1
	}
	return mark.ActiveGeneration
}

func setBuiltCursor(mark *storage.EntityMark, cursor replay.Cursor) {
	mark.BuiltThrough = cursor.After
	mark.BuiltGameID = cursor.GameID
	mark.BuiltSeq = cursor.Seq
}

// retryBackoff doubles from one second per attempt up to the cap, plus
// jitter so retries from a shared failure spread out. Past parkAttempts the
// entity waits out the parked schedule instead.
func retryBackoff(attempts int) time.Duration {
	if attempts <= 0 {
		attempts = 1
	}
	if attempts > parkAttempts {
		return parkedBackoff + rand.N(parkedBackoff/4)
	}
	backoff := time.Second << (attempts - 1)
	if backoff > maxRetryBackoff {
		backoff = maxRetryBackoff
	}
	return backoff + rand.N(backoff/4)
}
