// Package service exposes the job operation contract keyed by job id.
//
// A Service holds one aggregate per job. Operations on the same job id run
// one at a time under that aggregate's lock; different jobs never contend.
// Persistence, event fan-out and hooks run after the lock is released.
//
// Most users should import the root package github.com/jdziat/service-jobs
// which re-exports this package.
package service
