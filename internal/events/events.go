// Package events publishes change notifications after program edits land.
// A Change is emitted once per accepted submission that applied at least one
// effectful op; pure resubmissions and stale batches are silent.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/tapestry/internal/op"
)

// Change summarizes one persisted edit to a program.
type Change struct {
	// Program identifies the edited program.
	Program uuid.UUID

	// TLIDs lists the toplevels whose persisted state changed, ascending.
	TLIDs []op.TLID

	// Created, Updated, Deleted partition TLIDs by what happened to each
	// toplevel's live definition.
	Created []op.TLID
	Updated []op.TLID
	Deleted []op.TLID
}

// Sink receives change notifications. Implementations must tolerate
// concurrent Publish calls.
type Sink interface {
	Publish(ctx context.Context, c Change)
}

// NopSink discards every change.
type NopSink struct{}

func (NopSink) Publish(context.Context, Change) {}

// LogSink writes each change to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Publish(ctx context.Context, c Change) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "program changed",
		slog.String("program", c.Program.String()),
		slog.Int("changed", len(c.TLIDs)),
		slog.Int("created", len(c.Created)),
		slog.Int("updated", len(c.Updated)),
		slog.Int("deleted", len(c.Deleted)),
	)
}

// Bus fans a change out to every subscribed sink, in subscription order.
// The zero value is ready to use.
type Bus struct {
	mu    sync.RWMutex
	sinks []Sink
}

// Subscribe registers a sink. Sinks cannot be removed; a Bus lives as long
// as its engine.
func (b *Bus) Subscribe(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

// Publish delivers the change to every sink synchronously.
func (b *Bus) Publish(ctx context.Context, c Change) {
	b.mu.RLock()
	sinks := b.sinks
	b.mu.RUnlock()
	for _, s := range sinks {
		s.Publish(ctx, c)
	}
}
