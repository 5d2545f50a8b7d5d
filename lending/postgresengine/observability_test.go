package postgresengine_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
	. "github.com/AntonStoeckl/library-lending-go/lending/postgresengine"                         //nolint:revive
	. "github.com/AntonStoeckl/library-lending-go/testutil/postgresengine/helper"                 //nolint:revive
	. "github.com/AntonStoeckl/library-lending-go/testutil/postgresengine/helper/postgreswrapper" //nolint:revive
)

func Test_Observability_Lend_Logs_SQL_And_Operation(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logHandlerSpy := NewLogHandlerSpy(false)
	contextualHandlerSpy := NewLogHandlerSpy(false)
	wrapper := CreateWrapperWithTestConfig(
		t,
		WithLogger(slog.New(logHandlerSpy)),
		WithContextualLogger(slog.New(contextualHandlerSpy)),
		WithLockTimeout(time.Second),
	)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	book := GivenBook(t, ctx, engine, 1)
	user := GivenUser(t, ctx, engine, "")
	logHandlerSpy.Reset()
	contextualHandlerSpy.Reset()

	// act
	loan, err := engine.Lend(ctx, book.ID, user.ID, 14)

	// assert
	require.NoError(t, err)

	for _, spy := range []*LogHandlerSpy{logHandlerSpy, contextualHandlerSpy} {
		assert.True(t, spy.HasDebugLogWithMessage("lending: sql executed for set_lock_timeout").WithDurationMS().Assert())
		assert.True(t, spy.HasDebugLogWithMessage("lending: sql executed for lock_user").Assert())
		assert.True(t, spy.HasDebugLogWithMessage("lending: sql executed for lock_book").WithDurationMS().WithAttribute("query").Assert())
		assert.True(t, spy.HasDebugLogWithMessage("lending: sql executed for append_ledger_event").Assert())
		assert.True(t, spy.HasInfoLogWithMessage("lending: operation loan issued").
			WithAttributeValue("loan_id", loan.ID.String()).
			WithAttributeValue("book_id", book.ID.String()).
			Assert())
	}
}

func Test_Observability_OutOfStock_IsLogged_AndCounted(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logHandlerSpy := NewLogHandlerSpy(false)
	metricsSpy := NewMetricsCollectorSpy()
	wrapper := CreateWrapperWithTestConfig(t, WithLogger(slog.New(logHandlerSpy)), WithMetrics(metricsSpy))
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	book := GivenBook(t, ctx, engine, 1)
	user := GivenUser(t, ctx, engine, "")
	GivenLoan(t, ctx, engine, book, user, 14)
	metricsSpy.Reset()

	// act
	_, err := engine.Lend(ctx, book.ID, user.ID, 14)

	// assert
	assert.ErrorIs(t, err, lending.ErrOutOfStock)
	assert.True(t, logHandlerSpy.HasInfoLogWithMessage("lending: operation book out of stock").Assert())
	assert.Equal(t, 1, metricsSpy.HasCounterRecordForMetric("lending_out_of_stock_total").WithOperation("lend").Count())
	assert.True(t, metricsSpy.HasDurationRecordForMetric("lending_operation_duration_seconds").
		WithOperation("lend").
		WithStatus("error").
		Assert())
	assert.False(t, metricsSpy.HasCounterRecordForMetric("lending_store_errors_total").Assert())
}

func Test_Observability_Metrics_RecordSuccessfulOperations_WithContext(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metricsSpy := NewMetricsCollectorSpy()
	wrapper := CreateWrapperWithTestConfig(t, WithMetrics(metricsSpy))
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	book := GivenBook(t, ctx, engine, 1)
	user := GivenUser(t, ctx, engine, "")
	metricsSpy.Reset()

	// act
	loan, lendErr := engine.Lend(ctx, book.ID, user.ID, 14)
	_, returnErr := engine.ReturnBook(ctx, loan.ID)

	// assert
	require.NoError(t, lendErr)
	require.NoError(t, returnErr)

	assert.Equal(t, 1, metricsSpy.HasCounterRecordForMetric("lending_operations_total").
		WithOperation("lend").WithStatus("success").Count())
	assert.Equal(t, 1, metricsSpy.HasCounterRecordForMetric("lending_operations_total").
		WithOperation("return").WithStatus("success").Count())

	for _, record := range metricsSpy.GetRecords() {
		assert.True(t, record.HadContext, "the contextual interface must be preferred")
	}
}

func Test_Observability_Tracing_OpensOneSpanPerOperation(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tracingSpy := NewTracingCollectorSpy()
	wrapper := CreateWrapperWithTestConfig(t, WithTracing(tracingSpy))
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	book := GivenBook(t, ctx, engine, 1)
	user := GivenUser(t, ctx, engine, "")
	tracingSpy.Reset()

	// act
	loan, err := engine.Lend(ctx, book.ID, user.ID, 14)
	require.NoError(t, err)
	_, err = engine.Lend(ctx, book.ID, user.ID, 14)
	require.ErrorIs(t, err, lending.ErrOutOfStock)
	_, err = engine.GetLoanByID(ctx, loan.ID)
	require.NoError(t, err)

	// assert
	lendSpans := tracingSpy.SpansNamed("lending.lend")
	require.Len(t, lendSpans, 2)

	assert.True(t, lendSpans[0].Finished)
	assert.Equal(t, "success", lendSpans[0].Status)
	assert.Equal(t, book.ID.String(), lendSpans[0].StartAttributes["book_id"])
	assert.Equal(t, "lend", lendSpans[0].StartAttributes["operation"])
	assert.NotEmpty(t, lendSpans[0].EndAttributes["duration_ms"])

	assert.Equal(t, "error", lendSpans[1].Status)
	assert.Equal(t, "out_of_stock", lendSpans[1].EndAttributes["error_type"])

	querySpans := tracingSpy.SpansNamed("lending.query")
	require.Len(t, querySpans, 1)
	assert.Equal(t, "loan_by_id", querySpans[0].StartAttributes["query_name"])
}

func Test_Observability_StoreErrors_AreLoggedAndCounted(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logHandlerSpy := NewLogHandlerSpy(false)
	metricsSpy := NewMetricsCollectorSpy()
	wrapper := CreateWrapperWithTestConfig(
		t,
		WithLogger(slog.New(logHandlerSpy)),
		WithMetrics(metricsSpy),
		WithLockTimeout(50*time.Millisecond),
	)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	book := GivenBook(t, ctx, engine, 1)
	user := GivenUser(t, ctx, engine, "")
	release := HoldRowLock(t, wrapper, "books", book.ID)
	defer release()

	// act
	_, err := engine.Lend(ctx, book.ID, user.ID, 14)

	// assert
	assert.ErrorIs(t, err, lending.ErrConcurrencyConflict)
	assert.True(t, logHandlerSpy.HasErrorLogWithMessage("lending: operation failed").
		WithAttributeValue("operation", "lend").
		Assert())
	assert.True(t, metricsSpy.HasCounterRecordForMetric("lending_store_errors_total").
		WithOperation("lend").
		WithErrorType("concurrency_conflict").
		Assert())
}

func Test_Observability_TruncateAll_LogsItsOwnAction(t *testing.T) {
	// setup
	logHandlerSpy := NewLogHandlerSpy(false)
	wrapper := CreateWrapperWithTestConfig(t, WithLogger(slog.New(logHandlerSpy)))
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	logHandlerSpy.Reset()

	// act
	err := engine.TruncateAll(context.Background())

	// assert
	require.NoError(t, err)
	assert.True(t, logHandlerSpy.HasDebugLogWithMessage("lending: sql executed for truncate").Assert())
	assert.False(t, logHandlerSpy.HasDebugLogWithMessage("lending: sql executed for create_schema").Assert())
}
