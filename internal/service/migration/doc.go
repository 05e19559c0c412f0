// Package migration implements the audit resolution workflow and migration
// run lifecycle.
//
// The service layer owns the audit record state machine (pending → clean/
// flagged/error, flagged → resolved/skipped) and all business rules around
// human resolution. It depends on repository interfaces defined in this
// package and should never import from the api/ layer.
//
// Repository implementations live in repository/postgres/.
package migration
