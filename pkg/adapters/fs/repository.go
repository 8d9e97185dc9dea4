package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/fieldwatch/internal/fsutil"
	"github.com/aretw0/fieldwatch/pkg/core"
	"github.com/aretw0/fieldwatch/pkg/git"
)

// Extension is the file extension of vault documents.
const Extension = ".md"

// DefaultPattern selects every Markdown document of the vault.
const DefaultPattern = "**/*.md"

// Repository implements the document, content and watch ports on a
// directory of Markdown files.
type Repository struct {
	Path       string
	config     Config
	git        *git.Client
	serializer *MarkdownSerializer

	mu            sync.RWMutex
	watcherActive bool
	lastWrite     *time.Time
	writes        int64
}

// Config holds the configuration for the filesystem repository.
type Config struct {
	Path      string
	MustExist bool
	// Versioning commits every content write with git.
	Versioning bool
	// AutoInit runs git init when versioning is enabled and Path is not a repository.
	AutoInit bool
	ReadOnly bool
	Logger   *slog.Logger
	// SystemDir is the hidden directory holding fieldwatch state (e.g. ".fieldwatch").
	SystemDir string
	// Debounce is the quiet period before a watch event is emitted for an ID.
	Debounce time.Duration
	// ErrorHandler receives runtime watcher errors in addition to logging.
	ErrorHandler func(error)
}

// NewRepository creates a new filesystem-backed repository.
func NewRepository(config Config) *Repository {
	if config.SystemDir == "" {
		config.SystemDir = ".fieldwatch"
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Debounce <= 0 {
		config.Debounce = 50 * time.Millisecond
	}

	return &Repository{
		Path:       config.Path,
		config:     config,
		git:        git.NewClient(config.Path, config.SystemDir+".lock", config.Logger),
		serializer: NewMarkdownSerializer(),
	}
}

// Initialize ensures the vault directory exists and, with versioning, that
// it is a git repository.
func (r *Repository) Initialize(ctx context.Context) error {
	if r.config.MustExist || r.config.ReadOnly {
		info, err := os.Stat(r.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("vault path does not exist: %s", r.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", r.Path)
		}
	} else if err := os.MkdirAll(r.Path, 0755); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}

	if !r.config.Versioning || r.config.ReadOnly {
		return nil
	}

	if !git.IsInstalled() {
		return fmt.Errorf("git is not installed")
	}
	if !r.git.IsRepo() {
		if !r.config.AutoInit {
			return fmt.Errorf("path is not a git repository: %s", r.Path)
		}
		if err := r.git.Init(); err != nil {
			return fmt.Errorf("failed to git init: %w", err)
		}
	}

	if _, err := r.ensureIgnore(); err != nil {
		return fmt.Errorf("failed to ensure .gitignore: %w", err)
	}
	return nil
}

// ensureIgnore keeps the system directory and lock file out of version control.
func (r *Repository) ensureIgnore() (bool, error) {
	ignorePath := filepath.Join(r.Path, ".gitignore")
	entries := []string{r.config.SystemDir + "/", r.config.SystemDir + ".lock"}

	content, err := os.ReadFile(ignorePath)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}

	present := make(map[string]bool)
	for _, line := range strings.Split(string(content), "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var missing []string
	for _, e := range entries {
		if !present[e] {
			missing = append(missing, e)
		}
	}
	if len(missing) == 0 {
		return false, nil
	}

	var buf bytes.Buffer
	buf.Write(content)
	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		buf.WriteString("\n")
	}
	for _, e := range missing {
		buf.WriteString(e + "\n")
	}
	return true, fsutil.WriteFileAtomic(ignorePath, buf.Bytes(), 0644)
}

// Get retrieves and parses a document by its ID.
func (r *Repository) Get(ctx context.Context, id string) (core.Document, error) {
	path, err := r.pathFor(id)
	if err != nil {
		return core.Document{}, err
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return core.Document{}, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	if err != nil {
		return core.Document{}, err
	}
	defer f.Close()

	doc, err := r.serializer.Parse(f)
	if err != nil {
		return core.Document{}, fmt.Errorf("failed to parse %s: %w", id, err)
	}
	doc.ID = normalizeID(id)
	return *doc, nil
}

// List returns every document of the vault matching DefaultPattern.
// Documents that fail to parse are logged and skipped.
func (r *Repository) List(ctx context.Context) ([]core.Document, error) {
	return r.ListMatching(ctx, DefaultPattern)
}

// ListMatching returns every document whose vault-relative path matches pattern.
func (r *Repository) ListMatching(ctx context.Context, pattern string) ([]core.Document, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}

	var docs []core.Document
	err := filepath.WalkDir(r.Path, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != r.Path && r.isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !r.matches(path, pattern) {
			return nil
		}

		id, err := r.resolveID(path)
		if err != nil {
			return nil
		}
		doc, err := r.Get(ctx, id)
		if err != nil {
			r.config.Logger.Warn("skipping unreadable document", "id", id, "error", err)
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// ReadContent returns the full text of a document, front-matter included.
func (r *Repository) ReadContent(ctx context.Context, id string) (string, error) {
	path, err := r.pathFor(id)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteContent replaces the full text of an existing document atomically
// and, with versioning, commits it. The commit subject is taken from
// core.ChangeReasonKey when present.
func (r *Repository) WriteContent(ctx context.Context, id string, content string) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}

	path, err := r.pathFor(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}

	if err := fsutil.WriteFileAtomic(path, []byte(content), fsutil.PreservePerm(path, 0644)); err != nil {
		return err
	}
	r.recordWrite()

	if !r.config.Versioning {
		return nil
	}

	subject := fmt.Sprintf("update %s", normalizeID(id))
	if reason, ok := ctx.Value(core.ChangeReasonKey).(string); ok && reason != "" {
		subject = fmt.Sprintf("%s: %s", normalizeID(id), reason)
	}
	rel, err := filepath.Rel(r.Path, path)
	if err != nil {
		return err
	}
	if err := r.git.CommitFiles(git.FormatMessage("docs", "fieldwatch", subject, ""), filepath.ToSlash(rel)); err != nil {
		return fmt.Errorf("failed to commit %s: %w", id, err)
	}
	return nil
}

// pathFor maps an ID to its file, refusing IDs that escape the vault.
func (r *Repository) pathFor(id string) (string, error) {
	id = normalizeID(id)
	if id == "" {
		return "", errors.New("document ID cannot be empty")
	}
	if !filepath.IsLocal(filepath.FromSlash(id)) {
		return "", fmt.Errorf("document ID %q escapes the vault", id)
	}
	return filepath.Join(r.Path, filepath.FromSlash(id)+Extension), nil
}

// resolveID maps a file path inside the vault to its document ID.
func (r *Repository) resolveID(path string) (string, error) {
	rel, err := filepath.Rel(r.Path, path)
	if err != nil {
		return "", err
	}
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%s is outside the vault", path)
	}
	if filepath.Ext(rel) != Extension {
		return "", fmt.Errorf("%s is not a %s document", path, Extension)
	}
	return normalizeID(filepath.ToSlash(rel)), nil
}

// matches reports whether a file path is a document selected by pattern.
func (r *Repository) matches(path, pattern string) bool {
	rel, err := filepath.Rel(r.Path, path)
	if err != nil || !filepath.IsLocal(rel) {
		return false
	}
	rel = filepath.ToSlash(rel)
	if filepath.Ext(rel) != Extension || fsutil.IsTempFile(rel) {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		if r.isHidden(part) {
			return false
		}
	}
	ok, err := doublestar.Match(pattern, rel)
	return err == nil && ok
}

func (r *Repository) isHidden(name string) bool {
	return strings.HasPrefix(name, ".") || name == r.config.SystemDir
}

// normalizeID strips the extension and converts separators to slashes.
func normalizeID(id string) string {
	id = filepath.ToSlash(strings.TrimSpace(id))
	return strings.TrimSuffix(id, Extension)
}

func (r *Repository) recordWrite() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.lastWrite = &now
	r.writes++
}

var (
	_ core.DocumentStore = (*Repository)(nil)
	_ core.ContentStore  = (*Repository)(nil)
	_ core.Watchable     = (*Repository)(nil)
)
