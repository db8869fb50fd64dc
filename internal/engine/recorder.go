package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/baiirun/worklog/internal/model"
	"github.com/baiirun/worklog/internal/storage"
)

// Recorder appends immutable events to per-item logs. The author's display
// name is resolved at write time so history does not change when a user is
// renamed later.
type Recorder struct {
	log    storage.EventLog
	names  storage.NameResolver
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder builds a recorder. names may be nil, in which case every event
// is attributed to model.SystemAuthor.
func NewRecorder(log storage.EventLog, names storage.NameResolver, logger *slog.Logger, now func() time.Time) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Recorder{log: log, names: names, logger: logger, now: now}
}

// Record appends one event and returns its id. A failed name lookup falls
// back to "System"; only the append itself can fail.
func (r *Recorder) Record(ctx context.Context, itemID, actorID string, kind model.EventKind, detail map[string]any) (string, error) {
	e := &model.TimelineEvent{
		ID:         model.NewEventID(),
		ItemID:     itemID,
		Kind:       kind,
		AuthorID:   actorID,
		AuthorName: r.displayName(ctx, actorID),
		Detail:     detail,
		CreatedAt:  r.now(),
	}
	if err := r.log.AppendEvent(ctx, e); err != nil {
		return "", fromStore("record "+string(kind), err)
	}
	return e.ID, nil
}

func (r *Recorder) displayName(ctx context.Context, actorID string) string {
	if actorID == "" || r.names == nil {
		return model.SystemAuthor
	}
	name, err := r.names.DisplayName(ctx, actorID)
	if err != nil {
		r.logger.Warn("display name lookup failed", "actor", actorID, "error", err)
		return model.SystemAuthor
	}
	if name == "" {
		return model.SystemAuthor
	}
	return name
}
