// Package sqlite keeps a ledger of reconstruction runs and their output
// faces in SQLite.
//
// The schema is owned by the embedded migrations and applied with
// golang-migrate on Open. Reconstruction itself never touches the store;
// hosts record a roof.Result after the fact with RunFromResult and
// InsertRun.
package sqlite
