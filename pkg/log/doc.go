/*
Package log provides structured logging for cibcore using zerolog.

A single package-level Logger is configured once with Init and shared by every
package. Library code never writes to stdout; it derives component loggers and
attaches structured fields:

	schemaLog := log.WithComponent("schema")
	schemaLog.Debug().
		Str("schema", "pacemaker-3.0").
		Int("ordinal", 14).
		Msg("Known schema")

Until Init is called the Logger is the zero zerolog.Logger, which discards
everything. Tests rely on that and never initialize logging.

# Configuration

	log.Init(log.Config{
		Level:      log.ParseLevel(os.Getenv("CIBCORE_LOG_LEVEL")),
		JSONOutput: true,
		Output:     os.Stderr,
	})

JSON output is intended for daemons feeding log aggregation; the console writer
is the default for the command line tools.

# Context helpers

  - WithComponent: component name (schema, nvpair, manager, storage, ...)
  - WithSchema: schema version name a message refers to
  - WithRevision: stored CIB revision identifier
*/
package log
