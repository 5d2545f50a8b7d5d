package overdue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	// NoticeSubject is the subject of every overdue notice.
	NoticeSubject = "Library Book Overdue Notice"

	noticeBodyFormat = "Dear %s,\n\nYour loan for the book '%s' (ID: %s) is overdue. " +
		"Please return it as soon as possible.\n\nThank you!\nLibrary Management System"
)

const (
	logMsgSweepFailed       = "overdue: sweep failed"
	logMsgSweepDone         = "overdue: sweep completed"
	logMsgNotifyFailed      = "overdue: notification failed"
	logMsgSkippedNoEmail    = "overdue: skipped loan without borrower email"
	metricNotificationsName = "overdue_sweep_notifications_total"
	metricSweepDurationName = "overdue_sweep_duration_seconds"
	spanNameSweep           = "overdue.sweep"

	statusSent    = "sent"
	statusFailed  = "failed"
	statusSkipped = "skipped"
	statusSuccess = "success"
	statusError   = "error"
)

// OverdueLoanReader returns the active loans due strictly before now.
type OverdueLoanReader interface {
	OverdueLoans(ctx context.Context, now time.Time) ([]lending.OverdueLoan, error)
}

// Notifier sends a single notice.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Report summarizes one sweep.
type Report struct {
	Now       time.Time `json:"now"`
	Overdue   int       `json:"overdue"`
	Attempted int       `json:"attempted"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
}

// Sweeper performs overdue sweeps.
type Sweeper struct {
	loans            OverdueLoanReader
	notifier         Notifier
	logger           lending.Logger
	contextualLogger lending.ContextualLogger
	metricsCollector lending.MetricsCollector
	tracingCollector lending.TracingCollector
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithLogger sets the logger for sweep summaries and notification failures.
func WithLogger(logger lending.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

// WithContextualLogger sets a context-aware logger.
func WithContextualLogger(logger lending.ContextualLogger) Option {
	return func(s *Sweeper) { s.contextualLogger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector lending.MetricsCollector) Option {
	return func(s *Sweeper) { s.metricsCollector = collector }
}

// WithTracing sets the tracing collector.
func WithTracing(collector lending.TracingCollector) Option {
	return func(s *Sweeper) { s.tracingCollector = collector }
}

// NewSweeper creates a Sweeper reading from loans and notifying through notifier.
func NewSweeper(loans OverdueLoanReader, notifier Notifier, options ...Option) *Sweeper {
	s := &Sweeper{loans: loans, notifier: notifier}

	for _, option := range options {
		option(s)
	}

	return s
}

// NoticeBody renders the notice text for one overdue loan.
func NoticeBody(loan lending.OverdueLoan) string {
	return fmt.Sprintf(noticeBodyFormat, loan.Borrower.DisplayName(), loan.BookTitle, loan.Loan.BookID)
}

// Sweep notifies the borrower of every loan overdue at now, one attempt per loan.
// A failing notification is logged and counted but neither stops the sweep nor fails it,
// only a failing ledger read does.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (Report, error) {
	start := time.Now()
	report := Report{Now: now}

	ctx, span := s.startSpan(ctx, now)

	overdueLoans, err := s.loans.OverdueLoans(ctx, now)
	if err != nil {
		s.finishSpan(span, statusError, map[string]string{"error_type": lending.ErrorType(err)})
		s.recordDuration(ctx, time.Since(start), statusError)
		s.logError(ctx, logMsgSweepFailed, "error", err.Error())

		return report, fmt.Errorf("failed to read overdue loans: %w", err)
	}

	report.Overdue = len(overdueLoans)

	for _, loan := range overdueLoans {
		if loan.Borrower.Email == "" {
			report.Skipped++
			s.incrementCounter(ctx, statusSkipped)
			s.logDebug(ctx, logMsgSkippedNoEmail, "loan_id", loan.Loan.ID.String(), "user_id", loan.Borrower.ID.String())

			continue
		}

		report.Attempted++

		if err := s.notifier.Send(ctx, loan.Borrower.Email, NoticeSubject, NoticeBody(loan)); err != nil {
			report.Failed++
			s.incrementCounter(ctx, statusFailed)
			s.logWarn(ctx, logMsgNotifyFailed,
				"loan_id", loan.Loan.ID.String(),
				"to", loan.Borrower.Email,
				"error", err.Error())

			continue
		}

		s.incrementCounter(ctx, statusSent)
	}

	s.finishSpan(span, statusSuccess, map[string]string{
		"overdue":   strconv.Itoa(report.Overdue),
		"attempted": strconv.Itoa(report.Attempted),
		"failed":    strconv.Itoa(report.Failed),
	})
	s.recordDuration(ctx, time.Since(start), statusSuccess)
	s.logInfo(ctx, logMsgSweepDone,
		"now", now.Format(time.RFC3339),
		"overdue", report.Overdue,
		"attempted", report.Attempted,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"duration_ms", float64(time.Since(start).Nanoseconds())/1e6)

	return report, nil
}
