// Package identity owns user records: creation with salted scrypt hashes,
// lookup by ID or username, credential verification and the default seed accounts.
package identity
