package main

import (
	"github.com/cuemby/cibcore/pkg/events"
	"github.com/rs/zerolog"
)

// logEvents writes every event received on sub to logger until sub is
// closed. Rejections and rule failures are logged at warn level.
func logEvents(sub events.Subscriber, logger zerolog.Logger) {
	for event := range sub {
		entry := logger.Info()
		switch event.Type {
		case events.EventDocumentRejected, events.EventRuleFailed, events.EventCatalogFailed:
			entry = logger.Warn()
		}
		entry = entry.
			Str("event_id", event.ID).
			Str("type", string(event.Type)).
			Time("at", event.Timestamp)
		for key, value := range event.Metadata {
			entry = entry.Str(key, value)
		}
		entry.Msg(event.Message)
	}
}
