// Package schedule provides the recurring schedules that drive background
// scans, and a loop that runs a function on a schedule until its context ends.
package schedule
