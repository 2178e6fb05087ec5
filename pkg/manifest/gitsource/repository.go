package gitsource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"mercator-hq/interpose/pkg/config"
)

// ErrNotCloned indicates an operation that needs a clone ran before Clone.
var ErrNotCloned = errors.New("repository not cloned")

// Commit describes a Git commit.
type Commit struct {
	SHA       string    `json:"sha"`
	Author    string    `json:"author"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// PullResult describes one pull.
type PullResult struct {
	FromSHA      string
	ToSHA        string
	ChangedFiles []string
	HadChanges   bool

	// ManifestChanged reports whether the manifest file is among
	// ChangedFiles.
	ManifestChanged bool
}

// Repository is a local clone of the manifest repository.
type Repository struct {
	config    config.GitSourceConfig
	localPath string
	auth      AuthProvider

	mu   sync.RWMutex
	repo *gogit.Repository
}

// NewRepository validates cfg and prepares a repository. Nothing touches
// the network or disk until Clone.
func NewRepository(cfg *config.GitSourceConfig) (*Repository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Repository == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		return nil, fmt.Errorf("branch cannot be empty")
	}
	if !filepath.IsLocal(cfg.File) {
		return nil, fmt.Errorf("manifest file %q must be a relative path inside the repository", cfg.File)
	}

	auth, err := NewAuthProvider(&cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth provider: %w", err)
	}

	localPath := cfg.LocalPath
	if localPath == "" {
		localPath = filepath.Join(os.TempDir(), "interpose-manifest")
	}
	return &Repository{config: *cfg, localPath: localPath, auth: auth}, nil
}

// Clone clones the configured branch, or opens an existing clone at the
// local path.
func (r *Repository) Clone(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(filepath.Join(r.localPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(r.localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing clone: %w", err)
		}
		r.repo = repo
		return nil
	}

	if err := os.MkdirAll(r.localPath, 0o755); err != nil {
		return fmt.Errorf("failed to create clone directory: %w", err)
	}
	auth, err := r.auth.Auth()
	if err != nil {
		return fmt.Errorf("failed to get auth: %w", err)
	}

	cloneCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	repo, err := gogit.PlainCloneContext(cloneCtx, r.localPath, false, &gogit.CloneOptions{
		URL:           r.config.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(r.config.Branch),
		SingleBranch:  r.config.Depth > 0,
		Depth:         r.config.Depth,
		Auth:          auth,
	})
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}
	r.repo = repo
	return nil
}

// Pull fetches and fast-forwards the tracked branch.
func (r *Repository) Pull(ctx context.Context) (*PullResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return nil, ErrNotCloned
	}
	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	worktree, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	auth, err := r.auth.Auth()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth: %w", err)
	}

	pullCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err = worktree.PullContext(pullCtx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(r.config.Branch),
		SingleBranch:  true,
		Auth:          auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil, fmt.Errorf("failed to pull: %w", err)
	}

	newHead, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get new HEAD: %w", err)
	}
	result := &PullResult{
		FromSHA:    head.Hash().String(),
		ToSHA:      newHead.Hash().String(),
		HadChanges: head.Hash() != newHead.Hash(),
	}
	if !result.HadChanges {
		return result, nil
	}

	result.ChangedFiles, err = r.changedFiles(head.Hash(), newHead.Hash())
	if err != nil {
		return nil, err
	}
	manifest := filepath.ToSlash(filepath.Clean(r.config.File))
	for _, f := range result.ChangedFiles {
		if f == manifest {
			result.ManifestChanged = true
			break
		}
	}
	return result, nil
}

func (r *Repository) changedFiles(from, to plumbing.Hash) ([]string, error) {
	fromCommit, err := r.repo.CommitObject(from)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit %s: %w", from, err)
	}
	toCommit, err := r.repo.CommitObject(to)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit %s: %w", to, err)
	}
	fromTree, err := fromCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}
	toTree, err := toCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}
	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %w", err)
	}

	files := make([]string, 0, len(changes))
	for _, c := range changes {
		if c.To.Name != "" {
			files = append(files, c.To.Name)
		} else {
			files = append(files, c.From.Name)
		}
	}
	return files, nil
}

// Head returns the checked-out commit.
func (r *Repository) Head() (*Commit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.repo == nil {
		return nil, ErrNotCloned
	}
	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	c, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}
	return &Commit{
		SHA:       c.Hash.String(),
		Author:    c.Author.Name,
		Email:     c.Author.Email,
		Timestamp: c.Author.When,
		Message:   c.Message,
	}, nil
}

// ManifestPath returns the manifest file inside the clone.
func (r *Repository) ManifestPath() string {
	return filepath.Join(r.localPath, filepath.FromSlash(r.config.File))
}

// LocalPath returns the clone directory.
func (r *Repository) LocalPath() string { return r.localPath }

// URL returns the remote repository.
func (r *Repository) URL() string { return r.config.Repository }

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.config.Timeout)
}
