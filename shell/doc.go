// Package shell holds caller-side helpers around the lending engine.
//
// The engine never retries on its own. Callers that want to ride out short lock contention
// wrap Lend or ReturnBook in RetryWithExponentialBackoff.
package shell
