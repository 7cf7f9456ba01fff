// Package filestore keeps file version bytes in two zones of one afero
// filesystem: the public zone readers are served from, and the deleted zone
// holding bytes of hidden versions.
//
// Every batch call (Stage, Remove, Purge) attempts each op and reports the
// outcome per op through a Status; it never stops early on its own. Ordering
// across batches is the caller's responsibility.
package filestore
