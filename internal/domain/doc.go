// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (vdi.go, user.go, session.go, message.go, errors.go) hold the shared
// types and the contracts implemented by adapters. No implementation code beyond small helpers.
// Interfaces live here to keep adapters from importing each other.
package domain
