// Package instrumentation records call-governor metrics through the
// OpenTelemetry metric API, exported to Prometheus. A disabled provider is
// a safe no-op so the library never forces observability on its host.
package instrumentation
