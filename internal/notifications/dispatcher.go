package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"planit/internal/middleware"
	"planit/internal/observability"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// mailQueueKey is the Redis list holding pending outbound mail jobs.
const mailQueueKey = "mail:outbox"

// EmailJob is a queued outbound email.
type EmailJob struct {
	ID      string `json:"id"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Dispatcher decouples email delivery from the request path. Jobs are pushed
// onto a Redis list and drained by a background worker; when Redis is absent
// delivery happens inline on a goroutine. In both modes failures are logged
// and swallowed — a notifier outage must never block or roll back the
// operation that produced the notification.
type Dispatcher struct {
	rdb    *redis.Client
	mailer Mailer
}

// NewDispatcher creates a Dispatcher. rdb may be nil.
func NewDispatcher(rdb *redis.Client, mailer Mailer) *Dispatcher {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &Dispatcher{rdb: rdb, mailer: mailer}
}

// Enqueue schedules an email for best-effort delivery. It never returns an
// error; enqueue and delivery failures are counted and logged only.
func (d *Dispatcher) Enqueue(ctx context.Context, to, subject, body string) {
	if d == nil {
		return
	}
	job := EmailJob{
		ID:      uuid.New().String(),
		To:      to,
		Subject: subject,
		Body:    body,
	}

	if d.rdb != nil {
		b, err := json.Marshal(job)
		if err == nil {
			if err := d.rdb.LPush(ctx, mailQueueKey, b).Err(); err == nil {
				return
			}
			observability.NotificationFailures.WithLabelValues("enqueue").Inc()
			middleware.Logger.WarnContext(ctx, "mail enqueue failed, sending inline",
				slog.String("job_id", job.ID))
		}
	}

	// No queue available: deliver off the request path.
	go d.deliver(context.Background(), job)
}

// Run drains the queue until ctx is cancelled. Call from a background
// goroutine during startup.
func (d *Dispatcher) Run(ctx context.Context) {
	if d == nil || d.rdb == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := d.rdb.BRPop(ctx, 2*time.Second, mailQueueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			middleware.Logger.WarnContext(ctx, "mail queue pop failed", slog.String("error", err.Error()))
			time.Sleep(time.Second)
			continue
		}
		if len(res) != 2 {
			continue
		}

		var job EmailJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			observability.NotificationFailures.WithLabelValues("decode").Inc()
			middleware.Logger.WarnContext(ctx, "mail job decode failed", slog.String("error", err.Error()))
			continue
		}
		d.deliver(ctx, job)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, job EmailJob) {
	if err := d.mailer.Send(ctx, job.To, job.Subject, job.Body); err != nil {
		observability.NotificationFailures.WithLabelValues("send").Inc()
		middleware.Logger.WarnContext(ctx, "mail delivery failed",
			slog.String("job_id", job.ID),
			slog.String("to", job.To),
			slog.String("subject", job.Subject),
			slog.String("error", err.Error()),
		)
	}
}
