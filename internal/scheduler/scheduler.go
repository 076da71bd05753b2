package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/justinhw1987/invoiceflow/internal/clock"
	"github.com/justinhw1987/invoiceflow/internal/config"
	obsmetrics "github.com/justinhw1987/invoiceflow/internal/observability/metrics"
	recurringdomain "github.com/justinhw1987/invoiceflow/internal/recurring/domain"
	"github.com/justinhw1987/invoiceflow/internal/usercontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// Locker guards one generation per template and due date across invoker
// processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Params struct {
	fx.In

	Log          *zap.Logger
	AppConfig    config.Config
	Config       Config `optional:"true"`
	GenID        *snowflake.Node
	Clock        clock.Clock
	RecurringSvc recurringdomain.Service
	Locker       Locker                     `optional:"true"`
	Metrics      *obsmetrics.InvokerMetrics `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	location     *time.Location
	genID        *snowflake.Node
	clock        clock.Clock
	recurringSvc recurringdomain.Service
	locker       Locker
	metrics      *obsmetrics.InvokerMetrics
}

// RunResult counts what one pass did with the due templates.
type RunResult struct {
	Due       int
	Generated int
	Locked    int
	Skipped   int
	Failed    int
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.RecurringSvc == nil {
		return nil, ErrInvalidConfig
	}
	if p.Locker == nil {
		p.Log.Warn("recurring invoker running without a lock; run a single instance")
	}
	return &Scheduler{
		log:          p.Log.Named("scheduler").With(zap.String("component", "recurring_invoker")),
		cfg:          p.Config.withDefaults(),
		location:     p.AppConfig.Location(),
		genID:        p.GenID,
		clock:        p.Clock,
		recurringSvc: p.RecurringSvc,
		locker:       p.Locker,
		metrics:      p.Metrics,
	}, nil
}

func LockKey(templateID snowflake.ID, dueDate string) string {
	return fmt.Sprintf("recurring:generate:%s:%s", templateID, dueDate)
}

// RunOnce generates one invoice for every template due today. A failing
// template does not stop the pass; the errors are joined.
func (s *Scheduler) RunOnce(parent context.Context) (RunResult, error) {
	var result RunResult
	start := s.clock.Now()

	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	ctx, run := s.startJobRun(ctx, jobRecurringGenerate)
	s.logJobStart(ctx, run)
	s.metrics.IncRun(jobRecurringGenerate)
	defer func() {
		s.metrics.ObserveDuration(s.clock.Now().Sub(start))
		s.logJobFinish(ctx, run, result)
	}()

	today := clock.Today(s.clock, s.location)
	due, err := s.recurringSvc.ListDue(ctx, today, s.cfg.BatchSize)
	if err != nil {
		run.IncError()
		s.metrics.IncError(err)
		return result, fmt.Errorf("%s: list due: %w", jobRecurringGenerate, err)
	}
	result.Due = len(due)

	var errs error
	for _, tmpl := range due {
		if ctx.Err() != nil {
			errs = errors.Join(errs, ctx.Err())
			break
		}
		outcome, err := s.generate(ctx, tmpl)
		switch outcome {
		case obsmetrics.InvokerOutcomeGenerated:
			result.Generated++
			run.AddProcessed(1)
		case obsmetrics.InvokerOutcomeLocked:
			result.Locked++
		case obsmetrics.InvokerOutcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
			run.IncError()
			s.metrics.IncError(err)
			errs = errors.Join(errs, fmt.Errorf("template %s: %w", tmpl.ID, err))
		}
		s.metrics.AddTemplates(outcome, 1)
	}
	return result, errs
}

func (s *Scheduler) generate(ctx context.Context, tmpl recurringdomain.Template) (string, error) {
	key := LockKey(tmpl.ID, tmpl.NextInvoiceDate)
	log := s.logger(ctx).With(
		zap.String("template_id", tmpl.ID.String()),
		zap.String("user_id", tmpl.UserID.String()),
		zap.String("due_date", tmpl.NextInvoiceDate),
	)

	var token string
	if s.locker != nil {
		var acquired bool
		var err error
		token, acquired, err = s.locker.TryLock(ctx, key, s.cfg.LockTTL)
		if err != nil {
			log.Error("recurring.lock.failed", zap.Error(err))
			return obsmetrics.InvokerOutcomeFailed, err
		}
		if !acquired {
			log.Info("recurring.lock.held")
			return obsmetrics.InvokerOutcomeLocked, nil
		}
	}

	result, err := s.recurringSvc.GenerateDue(usercontext.WithUserID(ctx, tmpl.UserID), tmpl.ID.String(), tmpl.NextInvoiceDate)
	if errors.Is(err, recurringdomain.ErrAlreadyGenerated) {
		log.Info("recurring.generate.already_done")
		return obsmetrics.InvokerOutcomeSkipped, nil
	}
	if err != nil {
		// The lock stays on success so a rerun the same day is a no-op.
		if s.locker != nil {
			if releaseErr := s.locker.Release(context.WithoutCancel(ctx), key, token); releaseErr != nil {
				log.Warn("recurring.lock.release_failed", zap.Error(releaseErr))
			}
		}
		log.Error("recurring.generate.failed", zap.Error(err))
		return obsmetrics.InvokerOutcomeFailed, err
	}

	log.Info("recurring.generate.done",
		zap.String("invoice_id", result.Invoice.ID.String()),
		zap.Int64("invoice_number", result.Invoice.InvoiceNumber),
		zap.String("next_invoice_date", result.Template.NextInvoiceDate),
		zap.Int("warnings", len(result.Warnings)),
	)
	return obsmetrics.InvokerOutcomeGenerated, nil
}

// RunForever runs a pass immediately and then on every tick until ctx ends.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Warn("recurring invoker pass failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
