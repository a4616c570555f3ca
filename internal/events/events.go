// Package events broadcasts job progress so dashboards can follow a run live.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Channel is the Redis pub/sub channel progress events go to.
const Channel = "submission.jobs.progress"

type Type string

const (
	JobStarted   Type = "job.started"
	JobProgress  Type = "job.progress"
	JobCompleted Type = "job.completed"
	JobFailed    Type = "job.failed"
)

// Event is one progress notification. Directory and Status describe the
// attempt that triggered a job.progress event.
type Event struct {
	Type      Type      `json:"type"`
	JobID     string    `json:"job_id"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	Success   int       `json:"success"`
	Failed    int       `json:"failed"`
	Review    int       `json:"review"`
	Directory string    `json:"directory,omitempty"`
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	logger  *slog.Logger
}

func NewRedisPublisher(rdb *redis.Client, logger *slog.Logger) *RedisPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{rdb: rdb, channel: Channel, logger: logger}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Warn("events.publish.failed", "type", e.Type, "job_id", e.JobID, "err", err)
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}
