// Package revdel hides and restores fields of historical records.
//
// A redaction names a kind, a subject and a list of logical ids. The
// Coordinator resolves them into Records through a RecordSet (merging the
// live revision table with the archive for the revision kind), computes each
// record's new visibility bits, and writes them one row at a time with a
// compare-and-swap on the bits last read. Records of the oldimage kind also
// move their bytes between the public and deleted zones of the file
// repository; the Batch plans those moves and runs them in three ordered
// phases (stage, delete, cleanup) after the rows are written.
//
// Every run produces a Status with one Outcome per requested id. Errors that
// reject a run (invalid request, nothing found, lockout, an unacknowledged
// hide of the current revision) are returned before any row changes.
package revdel
