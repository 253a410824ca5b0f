package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/tapestry/internal/canvas"
	"github.com/roach88/tapestry/internal/dispatch"
	"github.com/roach88/tapestry/internal/events"
	"github.com/roach88/tapestry/internal/op"
	"github.com/roach88/tapestry/internal/store"
	"github.com/roach88/tapestry/internal/userdata"
)

// Engine coordinates edits and reads for all programs backed by one store.
type Engine struct {
	store  *store.Store
	sink   events.Sink
	logger *slog.Logger
	strict bool

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink routes change events to the given sink. The default discards
// them.
func WithSink(s events.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithLogger sets the engine's structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithStrictFold makes malformed ops fail the submission instead of being
// tolerated as warnings.
func WithStrictFold() Option {
	return func(e *Engine) { e.strict = true }
}

// New creates an Engine over the given store.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		sink:   events.NopSink{},
		logger: slog.Default(),
		locks:  make(map[uuid.UUID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SubmitResult reports what one accepted submission did.
type SubmitResult struct {
	// Canvas is the program snapshot after the fold.
	Canvas *canvas.Canvas

	// Changed lists the tlids whose live definition changed, ascending.
	Changed []op.TLID

	// Dropped counts the oplists filtered out as stale resubmissions.
	Dropped int

	// Warnings are the malformed ops the fold tolerated.
	Warnings []canvas.Warning
}

// programLock returns the mutex serializing writes to one program.
func (e *Engine) programLock(program uuid.UUID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[program]
	if !ok {
		l = &sync.Mutex{}
		e.locks[program] = l
	}
	return l
}

// Submit applies a batch of oplists to a program. Stale oplists (submission
// counter not strictly newer than the client's last accepted one) are
// dropped, never errors: resubmitting an already-applied batch returns the
// current snapshot unchanged. Fresh ops are folded, every touched toplevel's
// history is persisted, and a change event fires if any live definition
// actually changed.
func (e *Engine) Submit(ctx context.Context, program uuid.UUID, lists []op.Oplist) (*SubmitResult, error) {
	lock := e.programLock(program)
	lock.Lock()
	defer lock.Unlock()

	// Filtering only reads the stored counters. The counters advance later,
	// inside the same transaction that persists the histories, so a failed
	// fold or persist leaves them untouched and the client's retry of the
	// same op_ctr is still fresh.
	var filterErr error
	fresh, dropped := canvas.FilterStale(lists, func(clientID string, opCtr int64) bool {
		if filterErr != nil {
			return false
		}
		latest, err := e.store.IsLatestSubmission(ctx, program, clientID, opCtr)
		if err != nil {
			filterErr = err
			return false
		}
		return latest
	})
	if filterErr != nil {
		return nil, fmt.Errorf("filter stale: %w", filterErr)
	}

	prior, err := e.load(ctx, program)
	if err != nil {
		return nil, err
	}

	if len(fresh) == 0 {
		e.logger.DebugContext(ctx, "submission fully stale",
			slog.String("program", program.String()),
			slog.Int("dropped", dropped))
		return &SubmitResult{Canvas: prior, Dropped: dropped}, nil
	}

	var foldOpts []canvas.Option
	if e.strict {
		foldOpts = append(foldOpts, canvas.WithStrict())
	}
	res, err := canvas.Fold(prior, fresh, foldOpts...)
	if err != nil {
		return nil, err
	}

	// Every touched history is persisted, changed or not: savepoints and
	// redundant edits still extend the undo history a later fold replays.
	// The claimed counters commit with the histories.
	if err := e.persist(ctx, program, res.Canvas, touchedTLIDs(fresh), claims(fresh)); err != nil {
		return nil, err
	}

	if len(res.Changed) > 0 {
		e.sink.Publish(ctx, changeEvent(program, prior, res))
	}

	e.logger.InfoContext(ctx, "submission applied",
		slog.String("program", program.String()),
		slog.Int("lists", len(fresh)),
		slog.Int("dropped", dropped),
		slog.Int("changed", len(res.Changed)),
		slog.Int("warnings", len(res.Warnings)))

	return &SubmitResult{
		Canvas:   res.Canvas,
		Changed:  res.Changed,
		Dropped:  dropped,
		Warnings: res.Warnings,
	}, nil
}

// Load folds the program's stored histories into a canvas snapshot.
func (e *Engine) Load(ctx context.Context, program uuid.UUID) (*canvas.Canvas, error) {
	return e.load(ctx, program)
}

func (e *Engine) load(ctx context.Context, program uuid.UUID) (*canvas.Canvas, error) {
	stored, err := e.store.LoadOplists(ctx, program, nil, true)
	if err != nil {
		return nil, fmt.Errorf("load oplists: %w", err)
	}
	lists := make([]op.Oplist, 0, len(stored))
	for _, tl := range stored {
		lists = append(lists, op.Oplist{Ops: tl.Ops})
	}
	res, err := canvas.Fold(canvas.New(), lists)
	if err != nil {
		return nil, fmt.Errorf("fold stored history: %w", err)
	}
	return res.Canvas, nil
}

// Route resolves an incoming request against the program's live HTTP
// handlers. A nil match with nil error means no handler routes the request.
func (e *Engine) Route(ctx context.Context, program uuid.UUID, method, path string) (*dispatch.Match, error) {
	c, err := e.load(ctx, program)
	if err != nil {
		return nil, err
	}
	return dispatch.Dispatch(c, method, path)
}

// Data returns the typed data store scoped to one program.
func (e *Engine) Data(program uuid.UUID) *userdata.Store {
	return userdata.New(program, e.store)
}

// persist writes the full history of each touched toplevel, with its
// current digest and liveness, and advances the submission counters in
// the same transaction.
func (e *Engine) persist(ctx context.Context, program uuid.UUID, c *canvas.Canvas, tlids []op.TLID, claims []store.Claim) error {
	diffs := make([]store.TLOplist, 0, len(tlids))
	for _, id := range tlids {
		diff := store.TLOplist{TLID: id, Ops: c.HistoryFor(id)}
		if tl, ok := c.Live[id]; ok {
			diff.Digest = tl.Digest()
		} else if tl, ok := c.Deleted[id]; ok {
			diff.Deleted = true
			diff.Digest = tl.Digest()
		} else {
			diff.Deleted = true
		}
		diffs = append(diffs, diff)
	}
	if err := e.store.SaveSubmission(ctx, program, claims, diffs); err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	return nil
}

// claims reduces the fresh lists to one high-water counter per client.
// Anonymous lists (no client id) carry no idempotency key.
func claims(lists []op.Oplist) []store.Claim {
	var out []store.Claim
	idx := make(map[string]int)
	for _, list := range lists {
		if list.ClientID == "" {
			continue
		}
		if i, ok := idx[list.ClientID]; ok {
			if list.OpCtr > out[i].OpCtr {
				out[i].OpCtr = list.OpCtr
			}
			continue
		}
		idx[list.ClientID] = len(out)
		out = append(out, store.Claim{ClientID: list.ClientID, OpCtr: list.OpCtr})
	}
	return out
}

// touchedTLIDs unions the tlids of the fresh lists, first-seen order.
func touchedTLIDs(lists []op.Oplist) []op.TLID {
	var out []op.TLID
	seen := make(map[op.TLID]bool)
	for _, list := range lists {
		for _, id := range list.TLIDs() {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// changeEvent partitions the fold's changed tlids by what happened to each
// live definition between the prior and new snapshots.
func changeEvent(program uuid.UUID, prior *canvas.Canvas, res *canvas.Result) events.Change {
	change := events.Change{Program: program, TLIDs: res.Changed}
	for _, id := range res.Changed {
		_, wasLive := prior.Live[id]
		_, isLive := res.Canvas.Live[id]
		switch {
		case !wasLive && isLive:
			change.Created = append(change.Created, id)
		case wasLive && !isLive:
			change.Deleted = append(change.Deleted, id)
		default:
			change.Updated = append(change.Updated, id)
		}
	}
	return change
}
