// Package git wraps the git binary for the review repository: staging,
// committing, and reading files at earlier commits.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// ErrNotGitRepo indicates the directory is not a git repository.
var ErrNotGitRepo = errors.New("not a git repository")

// ErrCommitNotFound indicates the specified commit does not exist.
var ErrCommitNotFound = errors.New("commit not found")

// ErrNothingToCommit indicates the index has no staged changes.
var ErrNothingToCommit = errors.New("nothing to commit")

// Error carries the stderr of a failed git invocation.
type Error struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Identity is the committer recorded on every commit.
type Identity struct {
	Name  string
	Email string
}

// FindRepoRoot finds the root of the git repository containing the given path.
// Returns ErrNotGitRepo if not in a git repository.
func FindRepoRoot(path string) (string, error) {
	cmd := exec.Command("git", "-C", path, "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", ErrNotGitRepo
	}
	return strings.TrimSpace(string(output)), nil
}

// IsGitRepo checks if the given path is inside a git repository.
func IsGitRepo(path string) bool {
	_, err := FindRepoRoot(path)
	return err == nil
}

// Available reports whether the git binary is on PATH.
func Available() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// Repo is a working tree. Calls are serialized so that concurrent users
// never race on the index.
type Repo struct {
	root     string
	identity Identity
	mu       sync.Mutex
}

// Open returns the repository containing path.
func Open(path string, identity Identity) (*Repo, error) {
	root, err := FindRepoRoot(path)
	if err != nil {
		return nil, err
	}
	return &Repo{root: root, identity: identity}, nil
}

// Init creates a repository at root with "main" as the initial branch.
func Init(ctx context.Context, root string, identity Identity) (*Repo, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", root, err)
	}
	r := &Repo{root: root, identity: identity}
	if _, err := r.run(ctx, "init", "--quiet", "--initial-branch=main"); err != nil {
		// Older git versions lack --initial-branch.
		if _, err2 := r.run(ctx, "init", "--quiet"); err2 != nil {
			return nil, err
		}
	}
	return r, nil
}

// Root returns the top-level directory of the working tree.
func (r *Repo) Root() string {
	return r.root
}

// Identity returns the committer identity.
func (r *Repo) Identity() Identity {
	return r.identity
}

func (r *Repo) run(ctx context.Context, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runLocked(ctx, args...)
}

func (r *Repo) runLocked(ctx context.Context, args ...string) ([]byte, error) {
	full := append([]string{"-C", r.root}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, &Error{Args: args, Stderr: stderr.String(), Err: err}
	}
	return out, nil
}

// ValidateCommit verifies that a commit reference exists.
// Supports SHA, HEAD, HEAD~N, branch names, tags, etc.
// Returns the resolved full SHA or ErrCommitNotFound.
func (r *Repo) ValidateCommit(ctx context.Context, commitRef string) (string, error) {
	out, err := r.run(ctx, "rev-parse", "--verify", "--quiet", commitRef+"^{commit}")
	if err != nil {
		return "", ErrCommitNotFound
	}
	return strings.TrimSpace(string(out)), nil
}

// HasCommits reports whether HEAD points at a commit.
func (r *Repo) HasCommits(ctx context.Context) bool {
	_, err := r.ValidateCommit(ctx, "HEAD")
	return err == nil
}

// Show returns the content of path (relative to the root) at commitRef.
// found is false when the commit exists but the file did not.
func (r *Repo) Show(ctx context.Context, commitRef, path string) (content []byte, found bool, err error) {
	sha, err := r.ValidateCommit(ctx, commitRef)
	if err != nil {
		return nil, false, err
	}
	out, err := r.run(ctx, "show", sha+":"+path)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading %s at %s: %w", path, commitRef, err)
	}
	return out, true, nil
}

// Add stages paths.
func (r *Repo) Add(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := r.run(ctx, append([]string{"add", "--"}, paths...)...)
	return err
}

// IsTracked reports whether path is in the index.
func (r *Repo) IsTracked(ctx context.Context, path string) bool {
	out, err := r.run(ctx, "ls-files", "--", path)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) != ""
}

// HasStagedChanges reports whether the index differs from HEAD.
func (r *Repo) HasStagedChanges(ctx context.Context) (bool, error) {
	if !r.HasCommits(ctx) {
		out, err := r.run(ctx, "ls-files")
		if err != nil {
			return false, err
		}
		return strings.TrimSpace(string(out)) != "", nil
	}
	_, err := r.run(ctx, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, err
}

// Status returns the porcelain status lines for paths (all when empty).
func (r *Repo) Status(ctx context.Context, paths ...string) ([]string, error) {
	args := append([]string{"status", "--porcelain", "--"}, paths...)
	out, err := r.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, l := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// Commit records the staged changes with the repository identity and
// returns the new commit SHA. A failed commit leaves the index intact.
func (r *Repo) Commit(ctx context.Context, message string) (string, error) {
	staged, err := r.HasStagedChanges(ctx)
	if err != nil {
		return "", err
	}
	if !staged {
		return "", ErrNothingToCommit
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	args := []string{}
	if r.identity.Name != "" {
		args = append(args, "-c", "user.name="+r.identity.Name)
	}
	if r.identity.Email != "" {
		args = append(args, "-c", "user.email="+r.identity.Email)
	}
	args = append(args, "commit", "--quiet", "--no-verify", "-m", message)
	if _, err := r.runLocked(ctx, args...); err != nil {
		return "", err
	}
	out, err := r.runLocked(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Diff returns the unified diff of paths against HEAD.
func (r *Repo) Diff(ctx context.Context, paths ...string) (string, error) {
	if !r.HasCommits(ctx) {
		return "", nil
	}
	out, err := r.run(ctx, append([]string{"diff", "HEAD", "--"}, paths...)...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
