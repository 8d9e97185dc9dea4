package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/fieldwatch/pkg/adapters/fs"
	"github.com/aretw0/fieldwatch/pkg/core"
	"github.com/aretw0/fieldwatch/pkg/git"
)

// setupRepo creates an initialized repository in a temporary vault.
func setupRepo(t *testing.T, opts ...func(*fs.Config)) (*fs.Repository, string) {
	t.Helper()

	vaultPath := filepath.Join(t.TempDir(), "vault")
	cfg := fs.Config{Path: vaultPath, AutoInit: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	repo := fs.NewRepository(cfg)
	require.NoError(t, repo.Initialize(context.Background()))
	return repo, vaultPath
}

func writeDoc(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestInitialize(t *testing.T) {
	t.Run("Creates Directory if Missing", func(t *testing.T) {
		_, path := setupRepo(t)
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("Fails if MustExist and Missing", func(t *testing.T) {
		repo := fs.NewRepository(fs.Config{Path: filepath.Join(t.TempDir(), "missing"), MustExist: true})
		assert.Error(t, repo.Initialize(context.Background()))
	})

	t.Run("Inits Git Repo and Ignores System Dir", func(t *testing.T) {
		if !git.IsInstalled() {
			t.Skip("git not installed")
		}
		_, path := setupRepo(t, func(c *fs.Config) { c.Versioning = true })

		_, err := os.Stat(filepath.Join(path, ".git"))
		require.NoError(t, err)

		ignore, err := os.ReadFile(filepath.Join(path, ".gitignore"))
		require.NoError(t, err)
		assert.Contains(t, string(ignore), ".fieldwatch/")
		assert.Contains(t, string(ignore), ".fieldwatch.lock")
	})
}

func TestGet(t *testing.T) {
	repo, path := setupRepo(t)
	writeDoc(t, path, "notes/task.md", "---\nstatus: done\ndue: 2024-05-01\n---\n# Task\n")

	t.Run("Retrieves Metadata and Body", func(t *testing.T) {
		doc, err := repo.Get(context.Background(), "notes/task")
		require.NoError(t, err)
		assert.Equal(t, "notes/task", doc.ID)
		assert.Equal(t, "done", doc.Metadata["status"])
		assert.Equal(t, "# Task\n", doc.Content)
	})

	t.Run("Accepts ID with Extension", func(t *testing.T) {
		doc, err := repo.Get(context.Background(), "notes/task.md")
		require.NoError(t, err)
		assert.Equal(t, "notes/task", doc.ID)
	})

	t.Run("Returns ErrNotFound", func(t *testing.T) {
		_, err := repo.Get(context.Background(), "ghost")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("Refuses IDs Escaping the Vault", func(t *testing.T) {
		_, err := repo.Get(context.Background(), "../outside")
		assert.ErrorContains(t, err, "escapes")
	})
}

func TestList(t *testing.T) {
	repo, path := setupRepo(t)

	t.Run("Lists Empty Vault", func(t *testing.T) {
		docs, err := repo.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	writeDoc(t, path, "a.md", "---\nx: 1\n---\nA")
	writeDoc(t, path, "sub/b.md", "B")
	writeDoc(t, path, "sub/c.txt", "not a document")
	writeDoc(t, path, ".hidden/d.md", "hidden")
	writeDoc(t, path, ".fieldwatch/e.md", "system")
	writeDoc(t, path, "broken.md", "---\nx: 1\nno closing")

	t.Run("Skips Hidden and Unparsable Files", func(t *testing.T) {
		docs, err := repo.List(context.Background())
		require.NoError(t, err)

		var ids []string
		for _, d := range docs {
			ids = append(ids, d.ID)
		}
		assert.ElementsMatch(t, []string{"a", "sub/b"}, ids)
	})

	t.Run("Filters by Pattern", func(t *testing.T) {
		docs, err := repo.ListMatching(context.Background(), "sub/**/*.md")
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "sub/b", docs[0].ID)
	})

	t.Run("Rejects Invalid Pattern", func(t *testing.T) {
		_, err := repo.ListMatching(context.Background(), "[")
		assert.Error(t, err)
	})
}

func TestContent(t *testing.T) {
	t.Run("Round Trips Full Text", func(t *testing.T) {
		repo, path := setupRepo(t)
		writeDoc(t, path, "doc.md", "---\nx: 1\n---\nold")

		text, err := repo.ReadContent(context.Background(), "doc")
		require.NoError(t, err)
		assert.Equal(t, "---\nx: 1\n---\nold", text)

		require.NoError(t, repo.WriteContent(context.Background(), "doc", "---\nx: 1\n---\nnew"))
		data, err := os.ReadFile(filepath.Join(path, "doc.md"))
		require.NoError(t, err)
		assert.Equal(t, "---\nx: 1\n---\nnew", string(data))

		state := repo.State().(fs.RepositoryState)
		assert.EqualValues(t, 1, state.Writes)
		assert.NotNil(t, state.LastWrite)
	})

	t.Run("Does Not Create Missing Documents", func(t *testing.T) {
		repo, path := setupRepo(t)
		err := repo.WriteContent(context.Background(), "ghost", "boo")
		assert.ErrorIs(t, err, core.ErrNotFound)

		_, statErr := os.Stat(filepath.Join(path, "ghost.md"))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("Read Only Refuses Writes", func(t *testing.T) {
		dir := t.TempDir()
		writeDoc(t, dir, "doc.md", "x")
		repo := fs.NewRepository(fs.Config{Path: dir, ReadOnly: true})
		require.NoError(t, repo.Initialize(context.Background()))

		assert.ErrorIs(t, repo.WriteContent(context.Background(), "doc", "y"), core.ErrReadOnly)
	})

	t.Run("Commits with Change Reason", func(t *testing.T) {
		if !git.IsInstalled() {
			t.Skip("git not installed")
		}
		repo, path := setupRepo(t, func(c *fs.Config) { c.Versioning = true })
		writeDoc(t, path, "doc.md", "---\nstatus: open\n---\nStatus: open\n")

		ctx := context.WithValue(context.Background(), core.ChangeReasonKey, `set "Status:" to done`)
		require.NoError(t, repo.WriteContent(ctx, "doc", "---\nstatus: done\n---\nStatus: done\n"))

		client := git.NewClient(path, "", nil)
		out, err := client.Run("log", "-1", "--pretty=%B")
		require.NoError(t, err)
		lines := strings.Split(out, "\n")
		assert.Equal(t, `docs(fieldwatch): doc: set "Status:" to done`, lines[0])
		assert.Contains(t, out, git.Footer)
	})
}
