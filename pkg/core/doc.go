// Package core provides the fundamental types and interfaces for the jobs package.
//
// This package contains:
//   - Status and Action enums, including parsing of legacy status strings
//   - Job metadata, technician sessions, and timeline events
//   - JobSnapshot, the read-only projection returned by every operation
//   - Typed errors for rejected operations
//   - Storage interface defining the persistence contract
//
// Most users should import the root package github.com/jdziat/service-jobs
// instead of this package directly.
package core
