package revdel

import (
	"context"

	"github.com/roach88/revdel/internal/filestore"
	"github.com/roach88/revdel/internal/queryir"
)

//go:generate mockgen -destination=mock_db_test.go -package=revdel github.com/roach88/revdel/internal/revdel DB

// DB is the relational select/update primitive. Each call is atomic at the
// single-statement level. store.Store implements it.
type DB interface {
	Select(ctx context.Context, q queryir.Select) ([]queryir.Row, error)
	Update(ctx context.Context, u queryir.Update) (int64, error)
}

// FileRepo moves file bytes between the public and deleted zones.
// filestore.Repo implements it.
type FileRepo interface {
	Stage(ctx context.Context, ops []filestore.StageOp) *filestore.Status
	Remove(ctx context.Context, ops []filestore.DeleteOp) *filestore.Status
	Purge(ctx context.Context, ops []filestore.PurgeOp) *filestore.Status
}

// PageCache is invalidated around a redaction. pagecache.Cache implements it.
type PageCache interface {
	Invalidate(ctx context.Context, key string) error
	Purge(ctx context.Context, keys ...string) error
}
