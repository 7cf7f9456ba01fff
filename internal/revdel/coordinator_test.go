package revdel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/revdel/internal/events"
	"github.com/roach88/revdel/internal/filestore"
	"github.com/roach88/revdel/internal/log"
	"github.com/roach88/revdel/internal/pagecache"
	"github.com/roach88/revdel/internal/queryir"
	"github.com/roach88/revdel/internal/testutil"
	"github.com/roach88/revdel/internal/visibility"
)

func hideContent(ids ...string) Request {
	return Request{
		Kind:    KindRevision,
		Subject: pageSubj,
		IDs:     ids,
		Set:     visibility.Content,
		Actor:   admin,
		Reason:  "copyright violation",
	}
}

func TestRun_HideContentOfTwoRevisions(t *testing.T) {
	s, _ := testutil.Setup(t)
	c := NewCoordinator(s, WithOperationIDs(NewFixedGenerator("op-1")))

	req := hideContent("10", "11")
	req.AckCurrent = true
	st, err := c.Run(t.Context(), req)
	require.NoError(t, err)

	assert.Equal(t, "op-1", st.OperationID)
	assert.Equal(t, StatePostCommitted, st.State)
	assert.True(t, st.OK())
	assert.Equal(t, ResultAll, st.Result())
	assert.Equal(t, []string{"10", "11"}, st.Order)
	assert.Equal(t, []string{"10", "11"}, st.Changed())
	assert.Equal(t, Outcome{Kind: OutcomeOK, Old: 0, New: visibility.Content}, st.Outcomes["10"])
	assert.Nil(t, st.Storage, "revisions own no files")

	assert.Equal(t, visibility.Content, revBits(t, s, 10))
	assert.Equal(t, visibility.Content, revBits(t, s, 11))
}

func TestRun_CurrentRevisionNeedsAcknowledgment(t *testing.T) {
	s, _ := testutil.Setup(t)
	c := NewCoordinator(s)

	st, err := c.Run(t.Context(), hideContent("10", "11"))
	require.Error(t, err)
	assert.True(t, IsCurrentVersion(err), "got %v", err)
	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, ResultNone, st.Result())
	assert.Empty(t, st.Outcomes, "existing ids are not reported missing")
	assert.Empty(t, st.Order)

	assert.Equal(t, visibility.Bits(0), revBits(t, s, 10), "no row changes after a structural error")
	assert.Equal(t, visibility.Bits(0), revBits(t, s, 11))

	t.Run("other fields of the current revision may be hidden", func(t *testing.T) {
		req := hideContent("11")
		req.Set = visibility.Author
		st, err := c.Run(t.Context(), req)
		require.NoError(t, err)
		assert.True(t, st.OK())
	})
}

func TestRun_NonCanonicalIDsResolve(t *testing.T) {
	s, _ := testutil.Setup(t)
	c := NewCoordinator(s)

	req := hideContent("010", "+11", "11")
	req.AckCurrent = true
	st, err := c.Run(t.Context(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"10", "11"}, st.Order)
	assert.Equal(t, OutcomeOK, st.Outcomes["10"].Kind)
	assert.Equal(t, OutcomeOK, st.Outcomes["11"].Kind)
	assert.Equal(t, ResultAll, st.Result())
	assert.True(t, st.OK())
	assert.Equal(t, visibility.Content, revBits(t, s, 10))
}

func TestRun_LiveAndArchivePair(t *testing.T) {
	s, _ := testutil.Setup(t)
	c := NewCoordinator(s)

	st, err := c.Run(t.Context(), hideContent("9", "10"))
	require.NoError(t, err)
	assert.True(t, st.OK())
	assert.Equal(t, visibility.Content, archiveBits(t, s, 9))
	assert.Equal(t, visibility.Content, revBits(t, s, 10))
}

func TestRun_ConcurrentModification(t *testing.T) {
	s, _ := testutil.Setup(t)
	db := &interceptDB{DB: s}
	db.before = func(ctx context.Context, u queryir.Update) {
		if id, ok := filterValue(u, "rev_id"); ok && u.Table == "revision" && id == int64(10) {
			// Another administrator gets there first.
			_, err := s.Update(ctx, queryir.Update{
				Table:  "revision",
				Set:    []queryir.Assignment{{Column: "rev_deleted", Value: int(visibility.Comment)}},
				Filter: queryir.Eq("rev_id", 10),
			})
			require.NoError(t, err)
		}
	}
	c := NewCoordinator(db)

	st, err := c.Run(t.Context(), hideContent("10", "9"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeConcurrentModification, st.Outcomes["10"].Kind)
	assert.True(t, IsConcurrentModification(st.Outcomes["10"].Err))
	assert.Equal(t, OutcomeOK, st.Outcomes["9"].Kind, "the loop continues past a lost swap")
	assert.False(t, st.OK())
	assert.Equal(t, ResultPartial, st.Result())
	assert.Equal(t, []string{"10"}, st.Failed())
	assert.Equal(t, visibility.Comment, revBits(t, s, 10), "the other writer's bits survive")
}

func TestRun_Lockout(t *testing.T) {
	s, _ := testutil.Setup(t)
	c := NewCoordinator(s)

	req := hideContent("10", "11", "99")
	req.Suppress = true
	req.AckCurrent = true

	st, err := c.Run(t.Context(), req)
	require.Error(t, err)
	assert.True(t, IsLockout(err))
	assert.Equal(t, []string{"99"}, st.Order)
	assert.Equal(t, OutcomeNotFound, st.Outcomes["99"].Kind)
	assert.NotContains(t, st.Outcomes, "10")
	assert.NotContains(t, st.Outcomes, "11")
	assert.ErrorIs(t, err, visibility.ErrLockout)
	assert.Equal(t, visibility.Bits(0), revBits(t, s, 10))
	assert.Equal(t, visibility.Bits(0), revBits(t, s, 11))

	req = hideContent("10")
	req.Suppress = true
	req.Actor = oversighter
	st, err = c.Run(t.Context(), req)
	require.NoError(t, err)
	assert.True(t, st.OK())
	assert.Equal(t, visibility.Content|visibility.Restricted, revBits(t, s, 10))

	t.Run("non-elevated actor cannot touch a restricted record", func(t *testing.T) {
		req := hideContent("10")
		req.Set = visibility.Author
		_, err := c.Run(t.Context(), req)
		assert.True(t, IsLockout(err))
	})
}

func TestRun_OldImageRestoreStagesAndCleansUp(t *testing.T) {
	s, repo := testutil.Setup(t)
	rec := &recordingRepo{inner: repo}
	c := NewCoordinator(s, WithFileRepo(rec))

	st, err := c.Run(t.Context(), Request{
		Kind:    KindOldImage,
		Subject: photoSubj,
		IDs:     []string{photoV2},
		Clear:   visibility.Content,
		Actor:   admin,
	})
	require.NoError(t, err)
	require.True(t, st.OK(), "%v", st.Storage.Err())

	require.NotNil(t, st.Storage)
	assert.Equal(t, 1, st.Storage.Stage.Attempted)
	assert.Equal(t, 0, st.Storage.Delete.Attempted)
	assert.Equal(t, 1, st.Storage.Cleanup.Attempted)
	assert.Equal(t, []string{PhaseStage, PhaseDelete, PhaseCleanup}, rec.Calls())
	assert.Equal(t, visibility.Bits(0), oldImageBits(t, s, photoV2))

	exists, err := repo.Exists(v2Blob.Path())
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRun_OldImageHideMovesToDeletedZone(t *testing.T) {
	s, repo := testutil.Setup(t)
	c := NewCoordinator(s, WithFileRepo(repo))

	st, err := c.Run(t.Context(), Request{
		Kind:    KindOldImage,
		Subject: photoSubj,
		IDs:     []string{photoV1},
		Set:     visibility.Content,
		Actor:   admin,
	})
	require.NoError(t, err)
	assert.True(t, st.OK())
	assert.Equal(t, 1, st.Storage.Delete.Succeeded)

	exists, err := repo.ExistsDeleted(v1Blob.Key())
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRun_StorageFailureKeepsRowChange(t *testing.T) {
	s, repo := testutil.Setup(t)
	c := NewCoordinator(s, WithFileRepo(&recordingRepo{inner: repo, failStage: true}))

	st, err := c.Run(t.Context(), Request{
		Kind:    KindOldImage,
		Subject: photoSubj,
		IDs:     []string{photoV2},
		Clear:   visibility.Content,
		Actor:   admin,
	})
	require.NoError(t, err)

	assert.False(t, st.OK())
	assert.Equal(t, StatePostCommitted, st.State)
	o := st.Outcomes[photoV2]
	assert.Equal(t, OutcomeStorageMigration, o.Kind)
	assert.True(t, IsStorageMigration(o.Err))
	assert.Equal(t, visibility.Bits(0), oldImageBits(t, s, photoV2), "committed rows are not rolled back")
}

func TestRun_OldImageNeedsFileRepo(t *testing.T) {
	s, _ := testutil.Setup(t)

	_, err := NewCoordinator(s).Run(t.Context(), Request{
		Kind: KindOldImage, Subject: photoSubj, IDs: []string{photoV1}, Set: visibility.Content, Actor: admin,
	})
	assert.True(t, IsInvalidRequest(err))
}

func TestRun_NotFound(t *testing.T) {
	s, _ := testutil.Setup(t)
	c := NewCoordinator(s)

	t.Run("nothing resolves", func(t *testing.T) {
		st, err := c.Run(t.Context(), hideContent("98", "99"))
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
		assert.Equal(t, StateFailed, st.State)
		assert.Equal(t, []string{"98", "99"}, st.Order)
		assert.Equal(t, OutcomeNotFound, st.Outcomes["99"].Kind)
	})

	t.Run("some ids resolve", func(t *testing.T) {
		st, err := c.Run(t.Context(), hideContent("10", "99"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeOK, st.Outcomes["10"].Kind)
		assert.Equal(t, OutcomeNotFound, st.Outcomes["99"].Kind)
		assert.True(t, IsNotFound(st.Outcomes["99"].Err))
		assert.Equal(t, ResultPartial, st.Result())
	})
}

func TestRun_UnchangedRecordsAreNotWritten(t *testing.T) {
	s, _ := testutil.Setup(t)
	updates := 0
	db := &interceptDB{DB: s, before: func(context.Context, queryir.Update) { updates++ }}
	c := NewCoordinator(db)

	_, err := c.Run(t.Context(), hideContent("10"))
	require.NoError(t, err)
	written := updates

	st, err := c.Run(t.Context(), hideContent("10"))
	require.NoError(t, err)
	assert.Equal(t, written, updates, "second run writes nothing")
	assert.Equal(t, OutcomeUnchanged, st.Outcomes["10"].Kind)
	assert.True(t, st.OK())
	assert.Empty(t, st.Changed())
}

func TestRun_StoreErrorFailsOneID(t *testing.T) {
	s, _ := testutil.Setup(t)
	ctrl := gomock.NewController(t)
	db := NewMockDB(ctrl)
	db.EXPECT().Select(gomock.Any(), gomock.Any()).DoAndReturn(s.Select).AnyTimes()
	db.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, u queryir.Update) (int64, error) {
		if id, ok := filterValue(u, "rev_id"); ok && id == int64(10) {
			return 0, errors.New("disk I/O error")
		}
		return s.Update(ctx, u)
	}).AnyTimes()

	st, err := NewCoordinator(db).Run(t.Context(), hideContent("9", "10"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeStoreError, st.Outcomes["10"].Kind)
	assert.Equal(t, ErrCodeStore, CodeOf(st.Outcomes["10"].Err))
	assert.Equal(t, OutcomeOK, st.Outcomes["9"].Kind)
	assert.Equal(t, ResultPartial, st.Result())
}

func TestRun_InvalidRequests(t *testing.T) {
	s, _ := testutil.Setup(t)
	c := NewCoordinator(s, WithMaxIDs(2))

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"nothing to do", func(r *Request) { r.Set = 0 }},
		{"set and clear overlap", func(r *Request) { r.Clear = visibility.Content }},
		{"unknown bits", func(r *Request) { r.Set = 64 }},
		{"too many ids", func(r *Request) { r.IDs = []string{"9", "10", "11"} }},
		{"malformed id", func(r *Request) { r.IDs = []string{"x"} }},
		{"no ids", func(r *Request) { r.IDs = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := hideContent("10")
			tt.mutate(&req)
			st, err := c.Run(t.Context(), req)
			require.Error(t, err)
			assert.True(t, IsInvalidRequest(err), "got %v", err)
			assert.Equal(t, StateFailed, st.State)
		})
	}
}

func TestRun_PreCommitFailureAbortsBeforeWriting(t *testing.T) {
	s, _ := testutil.Setup(t)
	cache := &failingCache{failInvalidate: true}
	c := NewCoordinator(s, WithPageCache(cache))

	st, err := c.Run(t.Context(), hideContent("10"))
	require.Error(t, err)
	assert.Equal(t, ErrCodePreCommit, CodeOf(err))
	assert.Equal(t, StateFailed, st.State)
	assert.Empty(t, st.Outcomes)
	assert.Equal(t, visibility.Bits(0), revBits(t, s, 10))
}

func TestRun_PostCommitHooks(t *testing.T) {
	s, repo := testutil.Setup(t)
	cache := pagecache.NewMemory(time.Minute, time.Minute)
	ctx := t.Context()
	require.NoError(t, cache.Set(ctx, pagecache.PageKey(NamespaceFile, "Photo.png"), "<html>"))
	require.NoError(t, cache.Set(ctx, pagecache.FileKey(v1Blob.Path()), "bytes"))

	notifier := events.NewMemory[VisibilityChanged](events.MemoryOptions{})
	ch, cancel := notifier.Subscribe()
	defer cancel()

	c := NewCoordinator(s,
		WithFileRepo(repo),
		WithPageCache(cache),
		WithNotifier(notifier),
		WithOperationIDs(NewFixedGenerator("op-7")))

	st, err := c.Run(ctx, Request{
		Kind: KindOldImage, Subject: photoSubj, IDs: []string{photoV1},
		Set: visibility.Content, Actor: admin, Reason: "privacy",
	})
	require.NoError(t, err)
	assert.Empty(t, st.HookErrors)

	_, found, err := cache.Get(ctx, pagecache.PageKey(NamespaceFile, "Photo.png"))
	require.NoError(t, err)
	assert.False(t, found, "subject page purged")
	_, found, err = cache.Get(ctx, pagecache.FileKey(v1Blob.Path()))
	require.NoError(t, err)
	assert.False(t, found, "affected file purged")

	select {
	case ev := <-ch:
		assert.Equal(t, VisibilityChanged{
			OperationID: "op-7",
			Kind:        KindOldImage,
			Namespace:   NamespaceFile,
			Title:       "Photo.png",
			ID:          photoV1,
			Old:         0,
			New:         visibility.Content,
			Actor:       "Admin",
			Reason:      "privacy",
		}, ev)
	case <-time.After(time.Second):
		t.Fatal("no VisibilityChanged event")
	}
}

func TestRun_PostCommitFailureIsAdvisory(t *testing.T) {
	s, _ := testutil.Setup(t)
	cache := &failingCache{failPurge: true}
	c := NewCoordinator(s, WithPageCache(cache))

	st, err := c.Run(t.Context(), hideContent("10"))
	require.NoError(t, err)
	assert.True(t, st.OK())
	assert.Len(t, st.HookErrors, 1)
	assert.Equal(t, StatePostCommitted, st.State)
	assert.Equal(t, []string{pagecache.PageKey(NamespaceMain, "Page")}, cache.invalidated)
}

func TestRun_Metrics(t *testing.T) {
	s, _ := testutil.Setup(t)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c := NewCoordinator(s, WithMetrics(m))

	_, err := c.Run(t.Context(), hideContent("10", "99"))
	require.NoError(t, err)
	_, err = c.Run(t.Context(), hideContent("98"))
	require.Error(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.runs.WithLabelValues("revision", "partial")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.runs.WithLabelValues("revision", "failed")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.items.WithLabelValues("revision", "ok")))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.items.WithLabelValues("revision", "not-found")))
}

func TestRun_StorageMetrics(t *testing.T) {
	s, repo := testutil.Setup(t)
	m := NewMetrics(prometheus.NewRegistry())
	c := NewCoordinator(s, WithFileRepo(&recordingRepo{inner: repo, failStage: true}), WithMetrics(m))

	_, err := c.Run(t.Context(), Request{
		Kind: KindOldImage, Subject: photoSubj, IDs: []string{photoV2}, Clear: visibility.Content, Actor: admin,
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.storageOps.WithLabelValues(PhaseStage, "failed")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.storageOps.WithLabelValues(PhaseCleanup, "aborted")))
}

func TestRun_LogsCarryOperationID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := log.Logger()
	log.SetLogger(zap.New(core))
	t.Cleanup(func() { log.SetLogger(prev) })

	s, _ := testutil.Setup(t)
	c := NewCoordinator(s, WithOperationIDs(NewFixedGenerator("op-logs")))
	_, err := c.Run(t.Context(), hideContent("10"))
	require.NoError(t, err)

	started := logs.FilterMessage("redaction started").All()
	require.Len(t, started, 1)
	fields := started[0].ContextMap()
	assert.Equal(t, "op-logs", fields["operation_id"])
	assert.Equal(t, "Admin", fields["actor"])

	transitions := logs.FilterMessage("state transition").All()
	var states []string
	for _, e := range transitions {
		states = append(states, e.ContextMap()["to"].(string))
	}
	assert.Equal(t, []string{
		string(StateQueried), string(StateBitsApplied), string(StatePreCommitted),
		string(StatePersisted), string(StatePostCommitted),
	}, states)
}

func TestRun_CancelledContextWritesNothing(t *testing.T) {
	s, _ := testutil.Setup(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	st, err := NewCoordinator(s).Run(ctx, hideContent("10"))
	require.Error(t, err)
	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, visibility.Bits(0), revBits(t, s, 10))
}

var _ FileRepo = (*filestore.Repo)(nil)
