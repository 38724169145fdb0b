// Package session maps inbound HTTP requests and websocket upgrades to an
// authenticated user. A signed cookie carries only an opaque session ID; the
// session itself lives in a domain.SessionStore (in memory or in Redis).
package session
