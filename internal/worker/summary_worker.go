// Package worker runs the background side of the app: it consumes visit
// events and summary requests from RabbitMQ and sends monthly reports.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"visitas/internal/amqp"
	"visitas/internal/core"
	"visitas/internal/notify"
)

// VisitProvider is the slice of the store the worker needs.
type VisitProvider interface {
	Refresh(ctx context.Context) error
	Visits() []core.Visit
}

// EventConsumer is the broker surface the worker consumes from.
type EventConsumer interface {
	ConsumeVisitEvents(ctx context.Context, handler func(*amqp.VisitEventMessage) error) error
	ConsumeSummaryRequests(ctx context.Context, handler func(*amqp.SummaryRequestMessage) error) error
}

type SummaryWorker struct {
	store     VisitProvider
	sender    notify.Sender
	recipient string
	loc       *time.Location
	interval  time.Duration

	lastReport string // "YYYY-MM" of the last scheduled report sent
}

func NewSummaryWorker(store VisitProvider, sender notify.Sender, recipient string, loc *time.Location, interval time.Duration) *SummaryWorker {
	if loc == nil {
		loc = time.Local
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &SummaryWorker{
		store:     store,
		sender:    sender,
		recipient: recipient,
		loc:       loc,
		interval:  interval,
	}
}

// HandleVisitEvent refreshes the worker's view of the collection so summary
// requests see the latest data.
func (w *SummaryWorker) HandleVisitEvent(ctx context.Context, msg *amqp.VisitEventMessage) error {
	slog.InfoContext(ctx, "Processing visit event", "kind", msg.Kind, "visit_id", msg.VisitID)
	if err := w.store.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh after %s: %w", msg.Kind, err)
	}
	return nil
}

// HandleSummaryRequest builds the monthly report and delivers it. A zero
// year/month means "the reference month", the current month or the most
// recently visited one.
func (w *SummaryWorker) HandleSummaryRequest(ctx context.Context, msg *amqp.SummaryRequestMessage) error {
	if err := w.store.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh before summary: %w", err)
	}

	visits := w.store.Visits()
	year, month := msg.Year, msg.Month
	if year == 0 || month == 0 {
		year, month = core.ReferenceMonth(visits, time.Now().In(w.loc))
	}

	report := core.MonthlyReport(visits, year, month)
	if err := w.sender.Send(ctx, w.recipient, report); err != nil {
		return fmt.Errorf("send monthly report %04d-%02d: %w", year, month, err)
	}

	slog.InfoContext(ctx, "Monthly report sent", "year", year, "month", month, "recipient", w.recipient)
	return nil
}

// Run consumes both queues and drives the report schedule until the context
// is cancelled.
func (w *SummaryWorker) Run(ctx context.Context, client EventConsumer) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return client.ConsumeVisitEvents(ctx, func(msg *amqp.VisitEventMessage) error {
			return w.HandleVisitEvent(ctx, msg)
		})
	})
	g.Go(func() error {
		return client.ConsumeSummaryRequests(ctx, func(msg *amqp.SummaryRequestMessage) error {
			return w.HandleSummaryRequest(ctx, msg)
		})
	})
	g.Go(func() error {
		return w.runSchedule(ctx)
	})

	return g.Wait()
}

// runSchedule sends the previous month's report on the first day of each
// month. The tick interval only bounds detection latency.
func (w *SummaryWorker) runSchedule(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			now = now.In(w.loc)
			if now.Day() != 1 {
				continue
			}
			prev := now.AddDate(0, -1, 0)
			stamp := prev.Format("2006-01")
			if stamp == w.lastReport {
				continue
			}
			msg := &amqp.SummaryRequestMessage{Year: prev.Year(), Month: int(prev.Month()), Timestamp: now}
			if err := w.HandleSummaryRequest(ctx, msg); err != nil {
				slog.ErrorContext(ctx, "Scheduled report failed", "month", stamp, "error", err)
				continue
			}
			w.lastReport = stamp
		}
	}
}
