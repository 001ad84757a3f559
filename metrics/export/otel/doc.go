// Package otel bridges authcore engine metrics into an OpenTelemetry meter
// via observable instruments backed by core snapshots.
package otel
