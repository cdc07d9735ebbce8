// Package conv converts between integer widths with overflow checks.
//
// Snapshot headers store counts as fixed-width unsigned integers; these helpers
// guard both directions of that boundary.
package conv
