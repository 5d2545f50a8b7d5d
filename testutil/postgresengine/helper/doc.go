// Package helper provides fixtures and observability test doubles for the lending engine tests.
//
// It contains factories for books, users and fake clocks, plus spies for slog handlers,
// metrics collectors, tracing collectors and notifiers that record every call for inspection.
package helper
