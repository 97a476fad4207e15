// Package logging provides structured logging with OpenTelemetry integration.
//
// The package wraps Zap with:
//   - a Trace level below Debug for step-by-step orchestration detail
//   - console and OpenTelemetry outputs
//   - automatic correlation fields (trace_id, document.id, batch.id, request.id)
//   - redaction of credentials and extracted contact details
//   - level-aware sampling that never drops errors
//
// Usage:
//
//	cfg, _ := logging.LoadConfig(appCfg)
//	logger, err := logging.NewLogger(cfg, otelProvider)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithDocument(ctx, 3)
//	ctx = logging.WithBatchID(ctx, batchID)
//	logger.Info(ctx, "batch finished", zap.Int("matched", n))
//
// Extracted names and phone numbers are personal data. Log counts with
// Count rather than the values themselves; the default redaction config
// masks the "names" and "phones" keys if they slip through.
package logging
