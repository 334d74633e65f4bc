// Package extension provides production-grade extensions for trackstate stores.
//
// This package includes:
//   - Prometheus metrics for writes, notifications and batches
//   - OpenTelemetry tracing of writes and batches
//   - Structured logging through log/slog
//
// Extensions are registered when a store is created:
//
//	s, err := state.New(initial,
//	    state.WithExtensions(
//	        extension.Prometheus(extension.WithNamespace("myapp")),
//	        extension.OpenTelemetry(),
//	        extension.Logging(slog.Default()),
//	    ),
//	)
//
// # Prometheus Metrics
//
// Metrics are registered once per registry, so one Prometheus extension
// (or several built with the same registry) can serve any number of stores:
//
//	metrics := extension.Prometheus(extension.WithRegistry(reg))
//	a, _ := state.New(docA, state.WithExtensions(metrics))
//	b, _ := state.New(docB, state.WithExtensions(metrics))
//
// Expose them with promhttp:
//
//	http.Handle("/metrics", promhttp.Handler())
//
// # OpenTelemetry Tracing
//
// Every applied write becomes a span named "trackstate.set" or
// "trackstate.merge". Writes inside a batch are children of a
// "trackstate.batch" span. The tracer comes from the global provider unless
// WithTracerProvider is used.
//
// # Logging
//
// Logging writes debug records for every write and batch, and info records
// for store creation and destruction.
package extension
