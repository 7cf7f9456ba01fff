package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/spf13/afero"

	"github.com/roach88/revdel/internal/log"
)

// ErrDestinationExists is returned when a stage target already holds
// different bytes.
var ErrDestinationExists = errors.New("destination exists with different content")

// StageOp copies bytes from the deleted zone back into the public zone.
type StageOp struct {
	// Src is a deleted-zone key.
	Src string
	// Dst is a public-zone path.
	Dst string
	// OverwriteSame lets the op succeed when Dst already holds identical bytes.
	OverwriteSame bool
	// Tag names the logical record the op serves.
	Tag string
}

// DeleteOp moves bytes from the public zone into the deleted zone.
type DeleteOp struct {
	// Src is a public-zone path.
	Src string
	// Dst is a deleted-zone key.
	Dst string
	Tag string
}

// PurgeOp erases a deleted-zone key.
type PurgeOp struct {
	Key string
	Tag string
}

// Repo is a two-zone file repository over an afero filesystem.
type Repo struct {
	fs         afero.Fs
	publicDir  string
	deletedDir string
}

// New creates a repo whose zones are publicDir and deletedDir inside fs.
func New(fs afero.Fs, publicDir, deletedDir string) *Repo {
	return &Repo{fs: fs, publicDir: publicDir, deletedDir: deletedDir}
}

// NewOS creates a repo rooted at dir on the local filesystem.
func NewOS(dir, publicDir, deletedDir string) *Repo {
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir), publicDir, deletedDir)
}

// NewMemory creates an in-memory repo.
func NewMemory(publicDir, deletedDir string) *Repo {
	return New(afero.NewMemMapFs(), publicDir, deletedDir)
}

// Fs returns the underlying filesystem.
func (r *Repo) Fs() afero.Fs {
	return r.fs
}

// PublicPath resolves a public-zone path to its location in Fs.
func (r *Repo) PublicPath(p string) string {
	return path.Join(r.publicDir, p)
}

// DeletedLocation resolves a deleted-zone key to its location in Fs.
func (r *Repo) DeletedLocation(key string) string {
	return path.Join(r.deletedDir, DeletedPath(key))
}

// Stage copies each op's deleted-zone bytes to its public path. The deleted
// copy is left in place; callers purge it separately once the stage landed.
func (r *Repo) Stage(ctx context.Context, ops []StageOp) *Status {
	st := &Status{}
	for _, op := range ops {
		src := r.DeletedLocation(op.Src)
		dst := r.PublicPath(op.Dst)
		if err := r.copyFile(src, dst, op.OverwriteSame); err != nil {
			log.Warn(ctx, "stage failed", log.String("src", src), log.String("dst", dst), log.Cause(err))
			st.fail(OpStage, op.Tag, op.Dst, err)
			continue
		}
		log.Debug(ctx, "staged file", log.String("src", src), log.String("dst", dst))
		st.success()
	}
	return st
}

// Remove moves each op's public bytes into the deleted zone. Bytes already
// present under the deleted key are kept, since keys are content addressed.
func (r *Repo) Remove(ctx context.Context, ops []DeleteOp) *Status {
	st := &Status{}
	for _, op := range ops {
		src := r.PublicPath(op.Src)
		dst := r.DeletedLocation(op.Dst)
		if err := r.copyFile(src, dst, true); err != nil {
			log.Warn(ctx, "delete failed", log.String("src", src), log.String("dst", dst), log.Cause(err))
			st.fail(OpDelete, op.Tag, op.Src, err)
			continue
		}
		if err := r.fs.Remove(src); err != nil {
			log.Warn(ctx, "delete failed", log.String("src", src), log.Cause(err))
			st.fail(OpDelete, op.Tag, op.Src, fmt.Errorf("remove public copy: %w", err))
			continue
		}
		log.Debug(ctx, "moved file to deleted zone", log.String("src", src), log.String("dst", dst))
		st.success()
	}
	return st
}

// Purge erases deleted-zone keys. A key that is already gone counts as
// purged.
func (r *Repo) Purge(ctx context.Context, ops []PurgeOp) *Status {
	st := &Status{}
	for _, op := range ops {
		loc := r.DeletedLocation(op.Key)
		if err := r.fs.Remove(loc); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn(ctx, "purge failed", log.String("key", op.Key), log.Cause(err))
			st.fail(OpPurge, op.Tag, op.Key, err)
			continue
		}
		log.Debug(ctx, "purged deleted-zone key", log.String("key", op.Key))
		st.success()
	}
	return st
}

// Put writes data at a public-zone path, creating directories as needed.
func (r *Repo) Put(p string, data []byte) error {
	return r.write(r.PublicPath(p), data)
}

// PutDeleted writes data under a deleted-zone key.
func (r *Repo) PutDeleted(key string, data []byte) error {
	return r.write(r.DeletedLocation(key), data)
}

// Exists reports whether a public-zone path exists.
func (r *Repo) Exists(p string) (bool, error) {
	return afero.Exists(r.fs, r.PublicPath(p))
}

// ExistsDeleted reports whether a deleted-zone key exists.
func (r *Repo) ExistsDeleted(key string) (bool, error) {
	return afero.Exists(r.fs, r.DeletedLocation(key))
}

func (r *Repo) write(loc string, data []byte) error {
	if err := r.fs.MkdirAll(path.Dir(loc), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w, key: %s", err, loc)
	}
	if err := afero.WriteFile(r.fs, loc, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w, key: %s", err, loc)
	}
	return nil
}

// copyFile copies src to dst. When dst exists it succeeds only if allowSame
// is set and the contents match.
func (r *Repo) copyFile(src, dst string, allowSame bool) error {
	data, err := afero.ReadFile(r.fs, src)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	existing, err := afero.ReadFile(r.fs, dst)
	switch {
	case err == nil:
		if allowSame && bytes.Equal(existing, data) {
			return nil
		}
		return ErrDestinationExists
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("failed to read destination: %w", err)
	}

	return r.write(dst, data)
}
