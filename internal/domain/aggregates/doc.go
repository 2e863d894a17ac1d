// Package aggregates defines the marketplace's aggregate contracts.
//
// Each contract is a write boundary whose invariants (one enrollment per
// learner and course, one payment per provider transaction, one certificate per
// completed enrollment, course counters matching their lesson set) are enforced
// inside a single database transaction.
package aggregates
