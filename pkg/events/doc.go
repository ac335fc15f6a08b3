/*
Package events provides an in-memory event broker for catalog and document
notifications.

The manager publishes an event whenever the schema catalog is rebuilt (or a
rebuild fails) and whenever a document is accepted, upgraded or rejected.
cib-migrate publishes revisions.migrated after an offline run. Subscribers
receive events on buffered channels:

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe(events.EventDocumentRejected)
	defer broker.Unsubscribe(sub)

	for ev := range sub {
		fmt.Println(ev.Metadata[events.MetaDeclared], ev.Message)
	}

Publish hands events to a single distribution goroutine through a queue of
100 events. Each subscriber has a buffer of 50; when it is full the event is
dropped for that subscriber only and counted in Dropped. Publishing never
blocks once the broker is stopped.

Events carry string metadata under the Meta* keys: the schema version, the
declared version, the stored revision ID, the number of upgrade steps and
similar details.
*/
package events
