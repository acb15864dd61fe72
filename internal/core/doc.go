// Package core holds the business logic of the optic fitment catalog,
// independent of any UI or transport layer. Web handlers, the CLI and tests
// all drive it through [Service].
//
// # Compatibility resolution
//
// [Service.Resolve] answers "which optics fit this handgun model?" with three
// pools: optics sharing a footprint cut into the slide, optics fitting the
// footprint of each adapter plate made for the model, and optics that bolt on
// directly. Which pools apply depends on the model's fit type. The UI goes
// through [Service.ResolveForSession] so that a newer selection cancels an
// older one and a late result never overwrites a newer one.
//
// # CSV reconciliation
//
// Importable tables register a [TableDefinition] at init time (see package
// tables). [Service.ImportCSV] parses a file and hands its records to
// [Service.ImportRows], which matches each row to a stored one by natural key
// (name, scoped to the parent make where the table has one), updates or
// inserts it, and reports every row as inserted, updated or skipped with a
// reason. References to other tables are resolved by case-insensitive name
// against a [Snapshot] taken once per batch, so rows in one file cannot refer
// to each other. Parents must be imported first, in [catalog.ImportOrder].
//
//	makes, optic_makes, footprints, models, optics, plates
//
// # Admin writes
//
// CreateModel, CreateOptic and CreatePlate validate a whole form with
// validator/v10 plus the fit-type and mount-type rules. The generic Create,
// Update and Delete cover the remaining tables through a column allow-list.
// Deletes cascade to dependent rows. Every write runs in a single store
// transaction, purges the listing cache and is recorded in the audit log.
//
// # Errors
//
// [MapError] turns any error returned here into a [UserMessage] with a stable
// code for display.
package core
