// internal/reporting/revision.go
package reporting

import (
	"fmt"

	"github.com/go-git/go-git/v5"
)

const shortHashLen = 12

// Revision describes the commit checked out in the git repository containing
// dir, e.g. "3f2a9c1d0b7e" or "3f2a9c1d0b7e-dirty" when the worktree has
// uncommitted changes.
func Revision(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("get HEAD: %w", err)
	}
	rev := head.Hash().String()[:shortHashLen]

	wt, err := repo.Worktree()
	if err != nil {
		return rev, nil
	}
	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("get status: %w", err)
	}
	if !status.IsClean() {
		rev += "-dirty"
	}
	return rev, nil
}
