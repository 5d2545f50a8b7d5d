package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	logMsgSQLExecuted     = "lending: sql executed for "
	logMsgOperation       = "lending: operation "
	logMsgRollbackFailed  = "lending: failed to rollback transaction"
	logMsgOperationFailed = "lending: operation failed"
	logMsgOutOfStock      = "book out of stock"
	logMsgLoanIssued      = "loan issued"
	logMsgLoanReturned    = "loan returned"

	logAttrDurationMS = "duration_ms"
	logAttrQuery      = "query"
	logAttrError      = "error"
	logAttrOperation  = "operation"
	logAttrBookID     = "book_id"
	logAttrUserID     = "user_id"
	logAttrLoanID     = "loan_id"
	logAttrDueDate    = "due_date"
	logAttrAvailable  = "available_copies"
	logAttrCount      = "count"

	operationLend        = "lend"
	operationReturn      = "return"
	operationQuery       = "query"
	operationCatalog     = "catalog"
	operationUsers       = "users"
	operationSchema      = "schema"
	actionLockBook       = "lock_book"
	actionLockLoan       = "lock_loan"
	actionDecrement      = "decrement_available_copies"
	actionIncrement      = "increment_available_copies"
	actionInsertLoan     = "insert_loan"
	actionCloseLoan      = "close_loan"
	actionAppendLedger   = "append_ledger_event"
	actionSelectLoans    = "select_loans"
	actionSelectOverdue  = "select_overdue_loans"
	actionSelectHistory  = "select_loan_history"
	actionSelectBooks    = "select_books"
	actionInsertBook     = "insert_book"
	actionUpdateBook     = "update_book"
	actionDeleteBook     = "delete_book"
	actionCountActive    = "count_active_loans"
	actionSelectUser     = "select_user"
	actionInsertUser     = "insert_user"
	actionUpdateUser     = "update_user"
	actionDeleteUser     = "delete_user"
	actionLockUser       = "lock_user"
	actionSetLockTimeout = "set_lock_timeout"
	actionCreateSchema   = "create_schema"
	actionTruncate       = "truncate"

	metricOperationDuration = "lending_operation_duration_seconds"
	metricOperationsTotal   = "lending_operations_total"
	metricOutOfStock        = "lending_out_of_stock_total"
	metricStoreErrors       = "lending_store_errors_total"

	spanNameLend    = "lending.lend"
	spanNameReturn  = "lending.return"
	spanNameQuery   = "lending.query"
	spanNameCatalog = "lending.catalog"

	spanAttrOperation  = "operation"
	spanAttrErrorType  = "error_type"
	spanAttrDurationMS = "duration_ms"
	spanAttrBookID     = "book_id"
	spanAttrUserID     = "user_id"
	spanAttrLoanID     = "loan_id"
	spanAttrQuery      = "query_name"

	labelStatus = "status"

	statusSuccess = "success"
	statusError   = "error"
)

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// logQuery logs SQL statements with execution time at debug level if a logger is configured.
func (e *Engine) logQuery(ctx context.Context, sqlQuery, action string, duration time.Duration) {
	if e.logger != nil {
		e.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level.
func (e *Engine) logOperation(ctx context.Context, action string, args ...any) {
	if e.logger != nil {
		e.logger.Info(logMsgOperation+action, args...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	}
}

// logWarn logs non-critical problems at warn level.
func (e *Engine) logWarn(ctx context.Context, message string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	if e.logger != nil {
		e.logger.Warn(message, allArgs...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.WarnContext(ctx, message, allArgs...)
	}
}

// logError logs failures at error level.
func (e *Engine) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	if e.logger != nil {
		e.logger.Error(message, allArgs...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

func (e *Engine) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if e.metricsCollector == nil {
		return
	}

	if contextual, ok := e.metricsCollector.(lending.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	e.metricsCollector.RecordDuration(metric, duration, labels)
}

func (e *Engine) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if e.metricsCollector == nil {
		return
	}

	if contextual, ok := e.metricsCollector.(lending.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	e.metricsCollector.IncrementCounter(metric, labels)
}

// operationObserver bundles the span, metrics and logging of one public engine operation.
type operationObserver struct {
	engine    *Engine
	ctx       context.Context
	operation string
	span      SpanContext
	start     time.Time
}

// observe starts the span for an operation and returns the context that carries it.
func (e *Engine) observe(
	ctx context.Context,
	spanName string,
	operation string,
	attrs map[string]string,
) (*operationObserver, context.Context) {
	spanAttrs := map[string]string{spanAttrOperation: operation}
	for key, value := range attrs {
		spanAttrs[key] = value
	}

	var span SpanContext
	if e.tracingCollector != nil {
		ctx, span = e.tracingCollector.StartSpan(ctx, spanName, spanAttrs)
	}

	return &operationObserver{
		engine:    e,
		ctx:       ctx,
		operation: operation,
		span:      span,
		start:     time.Now(),
	}, ctx
}

// finish records duration, counters and span status. It returns err unchanged.
func (o *operationObserver) finish(err error) error {
	duration := time.Since(o.start)
	status := statusSuccess
	if err != nil {
		status = statusError
	}

	labels := map[string]string{spanAttrOperation: o.operation, labelStatus: status}
	o.engine.recordDuration(o.ctx, metricOperationDuration, duration, labels)
	o.engine.incrementCounter(o.ctx, metricOperationsTotal, labels)

	finishAttrs := map[string]string{spanAttrDurationMS: fmt.Sprintf("%.2f", toMilliseconds(duration))}

	if err != nil {
		errorType := lending.ErrorType(err)
		finishAttrs[spanAttrErrorType] = errorType

		switch {
		case errors.Is(err, lending.ErrOutOfStock):
			o.engine.incrementCounter(o.ctx, metricOutOfStock, map[string]string{spanAttrOperation: o.operation})
		case errors.Is(err, lending.ErrStoreUnavailable):
			o.engine.incrementCounter(o.ctx, metricStoreErrors, map[string]string{
				spanAttrOperation: o.operation,
				spanAttrErrorType: errorType,
			})
			o.engine.logError(o.ctx, logMsgOperationFailed, err, logAttrOperation, o.operation)
		}
	}

	if o.engine.tracingCollector != nil && o.span != nil {
		o.engine.tracingCollector.FinishSpan(o.span, status, finishAttrs)
	}

	return err
}
