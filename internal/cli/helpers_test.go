package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/revdel/internal/filestore"
	"github.com/roach88/revdel/internal/queryir"
	"github.com/roach88/revdel/internal/store"
	"github.com/roach88/revdel/internal/testutil"
	"github.com/roach88/revdel/internal/visibility"
)

// wiki is an on-disk wiki loaded with the standard fixture, and the config
// file pointing at it.
type wiki struct {
	dir        string
	dbPath     string
	filesRoot  string
	configPath string
}

func newWiki(t *testing.T) *wiki {
	t.Helper()
	dir := t.TempDir()
	w := &wiki{
		dir:        dir,
		dbPath:     filepath.Join(dir, "wiki.db"),
		filesRoot:  filepath.Join(dir, "files"),
		configPath: filepath.Join(dir, "revdel.yaml"),
	}
	require.NoError(t, os.MkdirAll(w.filesRoot, 0o755))

	st, err := store.Open(w.dbPath)
	require.NoError(t, err)
	repo := filestore.NewOS(w.filesRoot, testutil.PublicDir, testutil.DeletedDir)
	require.NoError(t, testutil.Standard().Load(t.Context(), st, repo))
	require.NoError(t, st.Close())

	config := fmt.Sprintf(`
database:
  driver: sqlite3
  dsn: %q
storage:
  backend: os
  root: %q
  public_dir: %s
  deleted_dir: %s
cache:
  mode: none
log:
  level: error
`, w.dbPath, w.filesRoot, testutil.PublicDir, testutil.DeletedDir)
	require.NoError(t, os.WriteFile(w.configPath, []byte(config), 0o644))
	return w
}

// repo opens the wiki's file zones.
func (w *wiki) repo() *filestore.Repo {
	return filestore.NewOS(w.filesRoot, testutil.PublicDir, testutil.DeletedDir)
}

// bits reads one visibility column from the wiki's database.
func (w *wiki) bits(t *testing.T, table, column string, filter queryir.Predicate) visibility.Bits {
	t.Helper()
	st, err := store.Open(w.dbPath)
	require.NoError(t, err)
	defer st.Close()

	rows, err := st.Select(t.Context(), queryir.Select{From: table, Columns: []string{column}, Filter: filter})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	n, err := rows[0].Int64(column)
	require.NoError(t, err)
	return visibility.Bits(n)
}

// execute runs cmd with args, returning what it wrote to stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// typedResponse is CLIResponse with a concrete payload type.
type typedResponse[T any] struct {
	Status      string    `json:"status"`
	Data        T         `json:"data"`
	Error       *CLIError `json:"error"`
	OperationID string    `json:"operation_id"`
}

func decodeResponse[T any](t *testing.T, out string) typedResponse[T] {
	t.Helper()
	var resp typedResponse[T]
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}
