package revdel

import (
	"context"

	"github.com/roach88/revdel/internal/log"
	"github.com/roach88/revdel/internal/queryir"
	"github.com/roach88/revdel/internal/visibility"
)

// Record is one historical entry backed by one physical row.
//
// The set of implementations is closed: liveRevision, archivedRevision,
// archiveEntry, oldImage, fileArchiveEntry and logEntry. They share the bit
// protocol and differ in the row they write.
type Record interface {
	// ID is the caller-facing logical id.
	ID() string
	Kind() Kind
	// Timestamp is the 14-digit timestamp of the entry.
	Timestamp() string
	AuthorID() int64
	AuthorName() string
	Comment() string

	// Bits is the bitmask as last read from (or last written to) the row.
	Bits() visibility.Bits

	// CanView reports whether actor may see field of this record.
	CanView(field visibility.Bits, actor visibility.Actor) bool

	// SetBits writes newBits if and only if the row still holds Bits().
	//
	// It returns true when exactly one row changed, false when none did (the
	// row moved on or vanished), and an error only on I/O failure. On
	// success Bits() becomes newBits and any kind-specific follow-up work is
	// recorded on batch.
	SetBits(ctx context.Context, batch *Batch, newBits visibility.Bits) (bool, error)

	record()
}

// entry holds the fields every record kind exposes.
type entry struct {
	id        string
	timestamp string
	userID    int64
	userText  string
	comment   string
	bits      visibility.Bits
}

func (e *entry) ID() string            { return e.id }
func (e *entry) Timestamp() string     { return e.timestamp }
func (e *entry) AuthorID() int64       { return e.userID }
func (e *entry) AuthorName() string    { return e.userText }
func (e *entry) Comment() string       { return e.comment }
func (e *entry) Bits() visibility.Bits { return e.bits }
func (e *entry) record()               {}

func (e *entry) CanView(field visibility.Bits, actor visibility.Actor) bool {
	return visibility.CanView(e.bits, field, actor)
}

// compareAndSwap runs the conditional update for one record. key holds the
// physical key predicates; bitsColumn = old is appended here.
func (e *entry) compareAndSwap(ctx context.Context, db DB, table, bitsColumn string, key []queryir.Predicate, newBits visibility.Bits) (bool, error) {
	filter := append(append([]queryir.Predicate{}, key...), queryir.Eq(bitsColumn, int(e.bits)))
	n, err := db.Update(ctx, queryir.Update{
		Table:  table,
		Set:    []queryir.Assignment{{Column: bitsColumn, Value: int(newBits)}},
		Filter: queryir.And{Predicates: filter},
	})
	if err != nil {
		return false, err
	}
	if n != 1 {
		log.Debug(ctx, "compare-and-swap matched no row",
			log.String("table", table),
			log.String("id", e.id),
			log.Int64("affected", n))
		return false, nil
	}
	e.bits = newBits
	return true, nil
}

// updateRecentChanges mirrors newBits into the recentchanges index. The index
// has no unique reference back to the primary row, so it is matched on key
// plus timestamp. Best effort: the affected count is not checked and failures
// are only logged.
func updateRecentChanges(ctx context.Context, db DB, id string, key []queryir.Predicate, newBits visibility.Bits) {
	_, err := db.Update(ctx, queryir.Update{
		Table:  "recentchanges",
		Set:    []queryir.Assignment{{Column: "rc_deleted", Value: int(newBits)}},
		Filter: queryir.And{Predicates: key},
	})
	if err != nil {
		log.Warn(ctx, "recentchanges update failed", log.String("id", id), log.Cause(err))
	}
}
