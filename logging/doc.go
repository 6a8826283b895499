// Package logging provides a minimal logging interface, slog adapters and
// model interaction sinks.
//
// Two channels exist:
//
//   - Logger: structured operational logs (dotted message keys plus key/value
//     pairs, e.g. "tool.call.start", "tool", name) for the runtime itself.
//   - Sink: severity + preformatted message entries describing what users
//     asked and what the model answered. Sinks never return errors; a failing
//     backend must not block a conversation.
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	sink := logging.NewLoggerSink(logger)
//	sink.Log(ctx, logging.SeverityInfo, "[Callback] Consulta al agente root: hola")
//
// CloudSink ships entries to Google Cloud Logging; MemorySink records them for
// tests.
package logging
