// Package telemetry provides OpenTelemetry tracing and metrics for docmatch.
//
// Spans cover one OCR call, one extraction, one match batch and each
// identifier inside it. Traces and metrics are exported over OTLP (gRPC or
// HTTP) to a collector when enabled:
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc
//	  sampling:
//	    rate: 1.0
//	  metrics:
//	    enabled: true
//	    export_interval: "15s"
//
// Failures to build exporters never crash the process; the instance reports
// itself degraded through Health and hands out no-op providers.
//
// Tests use TestTelemetry, which records spans in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "match.item")
//	span.End()
//	tt.AssertSpanExists(t, "match.item")
package telemetry
