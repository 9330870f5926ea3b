// Package broker provides the typed durable-queue client used by every
// service process: publish with a durability flag, consume with explicit
// acknowledgment, bounded-retry connect, and self-healing reconnect.
//
// One Broker instance is constructed at startup and injected into publish
// and consume call sites; there is no shared global connection state. Two
// implementations exist: AMQPClient over RabbitMQ for deployment and Memory
// for tests and single-process development.
package broker
