// Package broadcast is the notification fan-out.
//
// A single actor goroutine owns the registry of live channels per user and
// processes commands in order: register, unregister, snapshot broadcasts and
// targeted holder alerts. Each websocket channel has its own writer goroutine
// with a bounded send buffer, so a slow client never stalls the actor.
// Delivery is best-effort: failures are logged and counted, never returned.
package broadcast
