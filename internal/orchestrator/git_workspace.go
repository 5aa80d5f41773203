package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	pkggit "github.com/fyrsmithlabs/devteam/pkg/git"
)

// GitWorkspace stages the files an implementation step reports modifying
// and commits them to the workflow's repo_root, grounded on this package's
// original PhaseCommit/"separate commits" idiom but driven by go-git instead
// of shelling out to git. No engine node and nothing in cmd/devteam calls it.
type GitWorkspace struct {
	repoRoot string
	logger   *zap.Logger
}

// NewGitWorkspace opens the git repository rooted at repoRoot.
func NewGitWorkspace(repoRoot string, logger *zap.Logger) (*GitWorkspace, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := git.PlainOpen(repoRoot); err != nil {
		return nil, fmt.Errorf("opening git repository at %q: %w", repoRoot, err)
	}
	return &GitWorkspace{repoRoot: repoRoot, logger: logger}, nil
}

// Commit stages exactly the given repo-relative paths and commits them with
// message, returning the resulting commit hash. It refuses to commit when
// the checked-out branch is main or master.
func (w *GitWorkspace) Commit(ctx context.Context, message string, paths []string, author object.Signature) (string, error) {
	branch, err := pkggit.DetectBranch(w.repoRoot)
	if err == nil && pkggit.IsMainBranch(branch) {
		return "", fmt.Errorf("refusing to commit workflow changes directly onto %q", branch)
	}

	repo, err := git.PlainOpen(w.repoRoot)
	if err != nil {
		return "", fmt.Errorf("opening repository: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}

	for _, p := range paths {
		if _, err := worktree.Add(p); err != nil {
			return "", fmt.Errorf("staging %q: %w", p, err)
		}
	}

	if author.When.IsZero() {
		author.When = time.Now()
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{Author: &author})
	if err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}

	w.logger.Info("committed workflow task", zap.String("commit", hash.String()), zap.Int("files", len(paths)))
	return hash.String(), nil
}

// Diff reports the repo-relative paths of files with staged, unstaged or
// untracked changes, in no particular order.
func (w *GitWorkspace) Diff(ctx context.Context) ([]string, error) {
	repo, err := git.PlainOpen(w.repoRoot)
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("getting status: %w", err)
	}

	var paths []string
	for path, s := range status {
		if s.Worktree != git.Unmodified || s.Staging != git.Unmodified {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// PullRequestOpener opens a pull request through go-github. No engine node
// and nothing in cmd/devteam calls it.
type PullRequestOpener struct {
	client *github.Client
	owner  string
	repo   string
}

// NewPullRequestOpener builds an opener for the given owner/repo using an
// already-authenticated *github.Client (an oauth2-wrapped http.Client is the
// caller's responsibility, per golang.org/x/oauth2's usual wiring).
func NewPullRequestOpener(client *github.Client, owner, repo string) *PullRequestOpener {
	return &PullRequestOpener{client: client, owner: owner, repo: repo}
}

// NewGitHubClient builds a *github.Client authenticated with a personal
// access token, using the standard oauth2.StaticTokenSource wiring go-github
// itself documents. Callers with app-installation or OAuth-flow tokens
// should build their own oauth2.TokenSource instead.
func NewGitHubClient(ctx context.Context, token string) *github.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

// Open creates a pull request from head into base with the workflow's
// narrative report as the body.
func (o *PullRequestOpener) Open(ctx context.Context, title, head, base, body string) (string, error) {
	pr, _, err := o.client.PullRequests.Create(ctx, o.owner, o.repo, &github.NewPullRequest{
		Title: &title,
		Head:  &head,
		Base:  &base,
		Body:  &body,
	})
	if err != nil {
		return "", fmt.Errorf("creating pull request: %w", err)
	}
	return pr.GetHTMLURL(), nil
}
