// Package core is the inventory application layer.
//
// It sits between the transports (HTTP handlers, the invctl CLI) and the
// store, and owns the behaviour that is neither: batch writes with logging
// and timeouts, spreadsheet import and export, the registry of server-side
// grid sessions, and the mapping of errors to user-facing messages.
//
// # Service
//
// [Service] wraps a [Repository] (normally *store.Store). Its Load, Update
// and Create methods make it a grid.Backend, so grid sessions created by
// [SessionRegistry] talk to the database through it.
//
// # Import
//
// [Service.Import] accepts .xlsx and .csv files. The header row is mapped
// to fields by label, every row gets a new identifier, and the rows are
// inserted as one batch. A failing row rejects the whole import with an
// inventory.BatchError. Concurrent imports are bounded by [ImportLimiter].
//
// # Errors
//
// [MapError] turns any error returned here into a [UserMessage] with a
// support code. Handlers log the technical error and show the message.
package core
