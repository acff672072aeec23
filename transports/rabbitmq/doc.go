// Package rabbitmq publishes patch lifecycle events to a RabbitMQ topic
// exchange.
//
// EventPublisher implements patching.EventSink. Every event is encoded as
// JSON and routed by its type ("patch.applied", "patch.removed", ...), so a
// consumer can bind "patch.*" or pick single transitions. Publishing retries
// with backoff and reopens the channel after a failure; the underlying
// ConnectionManager reconnects on its own when the broker drops the
// connection.
package rabbitmq
