// Package oteladapters binds the lending observability interfaces to OpenTelemetry.
//
// The engine and the overdue sweeper only know lending.Logger, lending.ContextualLogger,
// lending.MetricsCollector and lending.TracingCollector. The types here implement them with
// the OpenTelemetry metric and trace APIs and the otelslog bridge, so plugging a configured
// MeterProvider and TracerProvider into a librarian process is all that is needed.
package oteladapters
