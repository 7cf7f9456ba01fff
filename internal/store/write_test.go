package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/revdel/internal/queryir"
	"github.com/roach88/revdel/internal/querysql"
)

func casRevision(id, page int64, old, new int) queryir.Update {
	return queryir.Update{
		Table: "revision",
		Set:   []queryir.Assignment{{Column: "rev_deleted", Value: new}},
		Filter: queryir.AllOf(
			queryir.Eq("rev_id", id),
			queryir.Eq("rev_page", page),
			queryir.Eq("rev_deleted", old),
		),
	}
}

func readRevBits(t *testing.T, s *Store, id int64) int64 {
	t.Helper()
	rows, err := s.Select(t.Context(), queryir.Select{
		From:    "revision",
		Columns: []string{"rev_deleted"},
		Filter:  queryir.Eq("rev_id", id),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	bits, err := rows[0].Int64("rev_deleted")
	require.NoError(t, err)
	return bits
}

func TestUpdate_CompareAndSwap(t *testing.T) {
	s := createTestStore(t)
	seedPage(t, s)

	n, err := s.Update(t.Context(), casRevision(10, 3, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(1), readRevBits(t, s, 10))

	// Same old value again: the row has moved on.
	n, err = s.Update(t.Context(), casRevision(10, 3, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, int64(1), readRevBits(t, s, 10))
}

func TestUpdate_VanishedRow(t *testing.T) {
	s := createTestStore(t)
	seedPage(t, s)

	n, err := s.Update(t.Context(), casRevision(99, 3, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestUpdate_ConcurrentCallersExactlyOneWins(t *testing.T) {
	s := createTestStore(t)
	seedPage(t, s)

	const callers = 8
	results := make([]int64, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Every caller read bits 0 and wants a different new mask.
			n, err := s.Update(t.Context(), casRevision(11, 3, 0, 1+i%7))
			if err == nil {
				results[i] = n
			}
		}(i)
	}
	wg.Wait()

	var winners int64
	for _, n := range results {
		winners += n
	}
	assert.Equal(t, int64(1), winners)
}

func TestUpdate_RejectsMissingFilter(t *testing.T) {
	s := createTestStore(t)
	seedPage(t, s)

	_, err := s.Update(t.Context(), queryir.Update{
		Table: "revision",
		Set:   []queryir.Assignment{{Column: "rev_deleted", Value: 1}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, queryir.ErrInvalid)
	assert.Equal(t, int64(0), readRevBits(t, s, 10))
}

func TestSetPageLatest(t *testing.T) {
	s := createTestStore(t)
	seedPage(t, s)

	require.NoError(t, s.SetPageLatest(t.Context(), 3, 10))

	rows, err := s.Select(t.Context(), queryir.Select{
		From:    "page",
		Columns: []string{"page_latest"},
		Filter:  queryir.Eq("page_id", int64(3)),
	})
	require.NoError(t, err)
	latest, err := rows[0].Int64("page_latest")
	require.NoError(t, err)
	assert.Equal(t, int64(10), latest)
}

func TestInsertWriters(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.InsertArchive(ctx, ArchivedRevision{
		Namespace: 0, Title: "Gone", RevID: 20, Timestamp: "20230101000000", UserText: "Carol",
	}))
	require.NoError(t, s.InsertOldImage(ctx, OldImage{
		Name: "Cat.png", ArchiveName: "20230101000000!Cat.png", Timestamp: "20230101000000", SHA1: "abc",
	}))
	require.NoError(t, s.InsertFileArchive(ctx, FileArchive{
		ID: 5, Name: "Dog.png", StorageKey: "def.png", Timestamp: "20230102000000", SHA1: "def",
	}))
	require.NoError(t, s.InsertLog(ctx, LogEntry{
		ID: 40, Type: "block", Action: "block", Timestamp: "20230103000000", Namespace: 2, Title: "Vandal",
	}))
	require.NoError(t, s.InsertRecentChange(ctx, RecentChange{Timestamp: "20230103000000", LogID: 40}))

	counts := map[string]int{}
	for _, table := range []string{"archive", "oldimage", "filearchive", "logging", "recentchanges"} {
		var n int
		require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
		counts[table] = n
	}
	assert.Equal(t, map[string]int{
		"archive": 1, "oldimage": 1, "filearchive": 1, "logging": 1, "recentchanges": 1,
	}, counts)
}

func TestRebind(t *testing.T) {
	s := createTestStore(t)
	assert.Equal(t, "VALUES (?, ?)", s.rebind("VALUES (?, ?)"))

	pg := &Store{compiler: querysql.NewSQLCompiler(querysql.DialectDollar)}
	assert.Equal(t, "VALUES ($1, $2)", pg.rebind("VALUES (?, ?)"))
}
