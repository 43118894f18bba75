package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"contactapi/internal/util"
	"contactapi/pkg/domain"
	"contactapi/pkg/store"
	"contactapi/services/contact/internal/alert"
	"contactapi/services/contact/internal/mailer"
)

// DefaultStoreTimeout bounds the insert when Config.StoreTimeout is unset.
const DefaultStoreTimeout = 5 * time.Second

// Mailer sends the notification email.
type Mailer interface {
	Send(ctx context.Context, replyName, replyEmail, body string) error
}

// ChatNotifier posts the notification to a chat webhook.
type ChatNotifier interface {
	Notify(ctx context.Context, message string) error
}

// FailureObserver is told about every failed sink attempt.
type FailureObserver interface {
	Observe(ctx context.Context, sink string) (alert.Result, error)
}

// Config holds runtime configuration for the core application.
type Config struct {
	SenderName   string
	Mailer       Mailer
	Chat         ChatNotifier
	Store        store.SubmissionStore
	Alerter      FailureObserver
	StoreTimeout time.Duration
	Now          func() time.Time
}

// App fans one submission out to the email, chat and storage sinks.
type App struct {
	senderName   string
	mailer       Mailer
	chat         ChatNotifier
	store        store.SubmissionStore
	alerter      FailureObserver
	storeTimeout time.Duration
	now          func() time.Time
}

// Report is the per-sink outcome of one accepted submission.
// A nil field means the sink succeeded.
type Report struct {
	Submission domain.Submission
	Email      error
	Webhook    error
	Storage    error
}

// Failed returns the names of the sinks that failed, in invocation order.
func (r Report) Failed() []string {
	var failed []string
	if r.Email != nil {
		failed = append(failed, alert.SinkEmail)
	}
	if r.Webhook != nil {
		failed = append(failed, alert.SinkWebhook)
	}
	if r.Storage != nil {
		failed = append(failed, alert.SinkStorage)
	}
	return failed
}

// New constructs the application from its sinks.
func New(cfg Config) (*App, error) {
	if cfg.Mailer == nil {
		return nil, errors.New("mailer required")
	}
	if cfg.Chat == nil {
		return nil, errors.New("chat notifier required")
	}
	if cfg.Store == nil {
		return nil, errors.New("submission store required")
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &App{
		senderName:   cfg.SenderName,
		mailer:       cfg.Mailer,
		chat:         cfg.Chat,
		store:        cfg.Store,
		alerter:      cfg.Alerter,
		storeTimeout: cfg.StoreTimeout,
		now:          cfg.Now,
	}, nil
}

// Submit validates the form and, when valid, attempts email, then webhook,
// then storage exactly once each. Sink failures are logged and reported in
// the Report; the returned error is non-nil only for validation failures.
func (a *App) Submit(ctx context.Context, form ContactForm) (Report, error) {
	if err := form.Validate(); err != nil {
		return Report{}, err
	}
	logger := util.LoggerFromContext(ctx)
	// A caller hanging up after validation does not cancel the sinks;
	// each one carries its own timeout instead.
	ctx = context.WithoutCancel(ctx)

	body := FormatNotification(a.senderName, a.now(), form)
	var report Report

	if err := a.mailer.Send(ctx, form.Name, form.Email, body); err != nil {
		report.Email = &DeliveryError{Sink: alert.SinkEmail, Err: err}
	}
	a.record(ctx, logger, alert.SinkEmail, report.Email)

	if err := a.chat.Notify(ctx, body); err != nil {
		report.Webhook = &DeliveryError{Sink: alert.SinkWebhook, Err: err}
	}
	a.record(ctx, logger, alert.SinkWebhook, report.Webhook)

	storeCtx, cancel := context.WithTimeout(ctx, a.storeTimeout)
	saved, err := a.store.CreateSubmission(storeCtx, form.submission())
	cancel()
	if err != nil {
		report.Storage = &StorageError{Err: err}
	} else {
		report.Submission = saved
	}
	a.record(ctx, logger, alert.SinkStorage, report.Storage, "submission_id", saved.ID)

	return report, nil
}

func (a *App) record(ctx context.Context, logger *slog.Logger, sink string, err error, extra ...any) {
	if err == nil {
		logger.Info("sink delivered", append([]any{"sink", sink}, extra...)...)
		return
	}
	reason := "delivery"
	switch {
	case mailer.IsConfigError(err):
		reason = "config"
	case sink == alert.SinkStorage:
		reason = "storage"
	}
	logger.Error("sink failed", "sink", sink, "reason", reason, "err", err)

	if a.alerter == nil {
		return
	}
	result, obsErr := a.alerter.Observe(ctx, sink)
	if obsErr != nil {
		logger.Warn("failure alerter unavailable", "sink", sink, "err", obsErr)
		return
	}
	if result.Triggered {
		logger.Error("sink failure threshold reached",
			"sink", sink,
			"count", result.Count,
			"threshold", result.Threshold,
			"window", result.Window.String(),
		)
	}
}
