// Package engine implements the hierarchical work-item state and history
// engine: authorization, status transitions with cascades, derived progress,
// event recording and timeline aggregation.
//
// Every mutating entry point follows the same path: Gate, then Machine or a
// direct store write, then Recorder. Secondary effects (event appends,
// cascades, attachment cleanup) never fail the primary action; they are
// logged and returned as warnings on the Outcome.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/baiirun/worklog/internal/model"
	"github.com/baiirun/worklog/internal/storage"
)

const instrumentationName = "github.com/baiirun/worklog/internal/engine"

// DefaultRequestTimeout bounds a single Service call when Options leaves it unset.
const DefaultRequestTimeout = 30 * time.Second

// Options configures a Service.
type Options struct {
	// RequireCompletionProof makes a proof attachment mandatory when a
	// sub-task moves to Completed.
	RequireCompletionProof bool
	// RequestTimeout is the deadline applied to every call. Negative disables it.
	RequestTimeout time.Duration
	// FanOut caps concurrent child reads during aggregation.
	FanOut int

	Logger *slog.Logger
	Tracer trace.Tracer
	Meter  metric.Meter
	Clock  func() time.Time
}

// Outcome reports what a mutating call did. Warnings hold secondary effects
// that failed after the primary change committed.
type Outcome struct {
	Item       *model.WorkItem
	Issue      *model.Issue
	Attachment *model.Attachment
	Events     []string
	Warnings   []CascadeWarning
}

// Service is the engine's entry point.
type Service struct {
	store    storage.Store
	events   storage.EventLog
	files    storage.AttachmentStore
	gate     Gate
	recorder *Recorder
	machine  *Machine

	opts   Options
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time

	transitions metric.Int64Counter
	warnings    metric.Int64Counter
}

// New wires a Service over its collaborators. files may be nil when
// attachments are not used; names may be nil to attribute every event to
// "System".
func New(store storage.Store, events storage.EventLog, names storage.NameResolver, files storage.AttachmentStore, opts Options) (*Service, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(instrumentationName)
	}
	if opts.Meter == nil {
		opts.Meter = otel.Meter(instrumentationName)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.FanOut <= 0 {
		opts.FanOut = 8
	}

	transitions, err := opts.Meter.Int64Counter("worklog.transitions",
		metric.WithDescription("Committed status transitions"))
	if err != nil {
		return nil, fmt.Errorf("engine: transitions counter: %w", err)
	}
	warnings, err := opts.Meter.Int64Counter("worklog.cascade.warnings",
		metric.WithDescription("Secondary effects that failed after the primary action committed"))
	if err != nil {
		return nil, fmt.Errorf("engine: warnings counter: %w", err)
	}

	s := &Service{
		store:       store,
		events:      events,
		files:       files,
		opts:        opts,
		logger:      opts.Logger,
		tracer:      opts.Tracer,
		now:         opts.Clock,
		transitions: transitions,
		warnings:    warnings,
	}
	s.recorder = NewRecorder(events, names, opts.Logger, opts.Clock)
	s.machine = NewMachine(s)
	s.machine.Use(DemoteOnIssueOpen)
	return s, nil
}

// Machine exposes the state machine so callers can register extra hooks.
func (s *Service) Machine() *Machine { return s.machine }

// begin applies the request deadline and opens a span. The returned func
// ends both and must be deferred with the call's named error.
func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	cancel := func() {}
	if s.opts.RequestTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
	}
	ctx, span := s.tracer.Start(ctx, "engine."+op, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		span.End()
		cancel()
	}
}

// warn records a failed secondary effect on out.
func (s *Service) warn(ctx context.Context, out *Outcome, op, itemID string, err error) {
	s.logger.Warn("secondary effect failed", "op", op, "item", itemID, "error", err)
	s.warnings.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	if out != nil {
		out.Warnings = append(out.Warnings, CascadeWarning{Op: op, ItemID: itemID, Err: err})
	}
}

// record appends an event; a failure becomes a warning on out.
func (s *Service) record(ctx context.Context, out *Outcome, itemID, actorID string, kind model.EventKind, detail map[string]any) {
	id, err := s.recorder.Record(ctx, itemID, actorID, kind, detail)
	if err != nil {
		s.warn(ctx, out, "record "+string(kind), itemID, err)
		return
	}
	out.Events = append(out.Events, id)
}

func (s *Service) getItem(ctx context.Context, op, id string) (*model.WorkItem, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, fromStore(op, err)
	}
	return item, nil
}

func (s *Service) getIssue(ctx context.Context, op, id string) (*model.Issue, error) {
	issue, err := s.store.GetIssue(ctx, id)
	if err != nil {
		return nil, fromStore(op, err)
	}
	return issue, nil
}
