// Package security provides validation, sanitization, and limits for the jobs package.
//
// This package includes:
//   - Input validation for job, technician and actor identifiers
//   - Note sanitization so stored timeline text is printable and bounded
//   - Struct validation of vehicle metadata and request payloads
//   - Security-related constants defining maximum sizes and counts
//
// Most users should import the root package github.com/jdziat/service-jobs
// which re-exports these functions.
package security
