package activitymap

import (
	"context"

	"github.com/goliatone/go-accounts"
)

// LogSink writes normalized activity events to a structured logger.
type LogSink struct {
	logger accounts.Logger
	opts   []Option
}

var _ accounts.ActivitySink = (*LogSink)(nil)

// NewLogSink creates a sink logging through logger. A nil logger falls back to
// the module default.
func NewLogSink(logger accounts.Logger, opts ...Option) *LogSink {
	return &LogSink{
		logger: accounts.ResolveLogger("accounts.activity", nil, logger),
		opts:   opts,
	}
}

// Record implements accounts.ActivitySink.
func (s *LogSink) Record(_ context.Context, event accounts.ActivityEvent) error {
	out := Normalize(event, s.opts...)

	args := []any{
		"verb", out.Verb,
		"actor_id", out.ActorID,
		"object_type", out.ObjectType,
		"object_id", out.ObjectID,
		"channel", out.Channel,
		"occurred_at", out.OccurredAt,
	}
	if len(out.Metadata) > 0 {
		args = append(args, "metadata", out.Metadata)
	}

	if event.EventType == accounts.ActivityEventDanglingIdentity {
		s.logger.Error("account activity", args...)
		return nil
	}
	s.logger.Info("account activity", args...)
	return nil
}
