// Package ledger is the authoritative in-memory record of VDI ownership and request history.
//
// One mutex guards all state, so assign/approve/reject calls touching the same VDI or request
// are mutually exclusive. Every method returns copies; callers never hold pointers into the ledger.
package ledger
