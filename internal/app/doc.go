// Package app is the application layer.
//
// Service runs each client action against the ledger and then triggers the
// fan-out: a snapshot broadcast after every successful mutation and a
// targeted alert to the holder when a VDI is requested. Handlers never talk
// to the ledger or the broadcaster directly.
package app
