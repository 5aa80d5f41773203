// Package git provides lightweight Git repository inspection that doesn't
// need a full go-git checkout: detecting the current branch straight from
// .git/HEAD, and classifying it as a protected main branch. GitWorkspace
// uses this to refuse committing a workflow's changes directly onto main
// or master.
package git

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotGitRepo indicates the directory is not a Git repository
	ErrNotGitRepo = errors.New("not a git repository")

	// ErrHeadNotFound indicates the .git/HEAD file is missing
	ErrHeadNotFound = errors.New("HEAD file not found")
)

// DetectBranch detects the current Git branch from a project directory.
//
// It reads the .git/HEAD file to determine the branch name. If the HEAD
// is detached (not pointing to a branch), it returns "detached".
//
// Returns:
//   - Branch name (e.g., "main", "feature/v3-rebuild")
//   - "detached" if HEAD is detached
//   - Error if not a Git repo or HEAD file is unreadable
//
// Example:
//
//	branch, err := DetectBranch("/path/to/project")
//	if err != nil {
//	    // Handle error
//	}
//	if branch == "main" {
//	    // Use main collection
//	} else {
//	    // Use delta collection
//	}
func DetectBranch(projectPath string) (string, error) {
	// Check if .git directory exists
	gitDir := filepath.Join(projectPath, ".git")
	if _, err := os.Stat(gitDir); os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrNotGitRepo, projectPath)
	}

	// Read HEAD file
	headFile := filepath.Join(gitDir, "HEAD")
	content, err := os.ReadFile(headFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrHeadNotFound, headFile)
		}
		return "", fmt.Errorf("reading HEAD file: %w", err)
	}

	// Parse HEAD content
	head := strings.TrimSpace(string(content))

	// Empty HEAD file indicates detached state
	if head == "" {
		return "detached", nil
	}

	// Check if HEAD points to a branch (ref: refs/heads/<branch>)
	if strings.HasPrefix(head, "ref: refs/heads/") {
		branch := strings.TrimPrefix(head, "ref: refs/heads/")
		return branch, nil
	}

	// If HEAD contains a commit hash (detached HEAD)
	return "detached", nil
}

// IsMainBranch checks if the given branch name is a main branch.
//
// Main branches are typically "main" or "master". GitWorkspace.Commit
// refuses to stage a workflow's changes when the repo's current branch is
// one of these, since an autonomous run should never commit directly onto
// the branch other work is based on.
//
// Returns:
//   - true if branch is "main" or "master"
//   - false otherwise
//
// Example:
//
//	if IsMainBranch(branch) {
//	    return errors.New("refusing to commit directly onto a main branch")
//	}
func IsMainBranch(branch string) bool {
	return branch == "main" || branch == "master"
}
