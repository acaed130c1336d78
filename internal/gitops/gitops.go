// Package gitops provides read-through git and worktree queries used by
// the IPC Broker's get_worktree_diff / get_changed_files methods.
//
// Uses github.com/go-git/go-git/v5 (already present in go-hub/go.mod) rather
// than shelling out to a git binary. This is a thin contract adapter, not a
// reimplementation of worktree creation/removal, which stays out of scope.
package gitops

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// BranchInfo describes one local branch.
type BranchInfo struct {
	Name string
	Head string // commit hash, hex
}

// WorktreeInfo describes one registered worktree.
type WorktreeInfo struct {
	Path   string
	Branch string
}

// ChangedFile describes one file changed by a branch's tip commit relative
// to its parent.
type ChangedFile struct {
	Path   string
	Status string // "added", "modified" or "deleted"; renames are not detected
}

// GitOps is the read-through contract the IPC Broker dispatches
// get_worktree_diff / get_changed_files to. The core never interprets
// internal git text; every method returns a structured value or a typed
// failure.
type GitOps interface {
	ListBranches(repoRoot string) ([]BranchInfo, error)
	ListWorktrees(repoRoot string) ([]WorktreeInfo, error)
	StashList(repoRootOrWorktree string) ([]string, error)
	WorktreeDiff(repoRoot, branch string) (string, error)
	ChangedFiles(repoRoot, branch string) ([]ChangedFile, error)
}

// GoGitOps is the go-git-backed implementation of GitOps.
type GoGitOps struct{}

// New constructs a go-git-backed GitOps.
func New() *GoGitOps {
	return &GoGitOps{}
}

// ListBranches enumerates local branches and their current head commit.
func (g *GoGitOps) ListBranches(repoRoot string) ([]BranchInfo, error) {
	repo, err := git.PlainOpen(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("open repo %s: %w", repoRoot, err)
	}

	iter, err := repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer iter.Close()

	var branches []BranchInfo
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		branches = append(branches, BranchInfo{
			Name: ref.Name().Short(),
			Head: ref.Hash().String(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate branches: %w", err)
	}
	return branches, nil
}

// ListWorktrees enumerates the worktrees registered against repoRoot's
// .git/worktrees directory. go-git does not expose worktree enumeration
// directly, so this reads the on-disk worktree administrative files the
// same way the git CLI does.
func (g *GoGitOps) ListWorktrees(repoRoot string) ([]WorktreeInfo, error) {
	adminDir := filepath.Join(repoRoot, ".git", "worktrees")
	entries, err := os.ReadDir(adminDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []WorktreeInfo{}, nil
		}
		return nil, fmt.Errorf("read worktrees dir: %w", err)
	}

	var worktrees []WorktreeInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		gitdirFile := filepath.Join(adminDir, entry.Name(), "gitdir")
		data, err := os.ReadFile(gitdirFile)
		if err != nil {
			continue
		}
		workdirGitFile := string(data)
		worktreePath := filepath.Dir(trimNewline(workdirGitFile))

		headFile := filepath.Join(adminDir, entry.Name(), "HEAD")
		headData, err := os.ReadFile(headFile)
		branch := ""
		if err == nil {
			branch = plumbing.ReferenceName(trimNewline(string(headData))).Short()
		}

		worktrees = append(worktrees, WorktreeInfo{Path: worktreePath, Branch: branch})
	}
	return worktrees, nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// StashList returns the commit hash of the most recent stash entry
// (refs/stash) of the repository at repoRootOrWorktree, or an empty list
// when there is none. Older entries in the stash reflog are not listed.
func (g *GoGitOps) StashList(repoRootOrWorktree string) ([]string, error) {
	repo, err := git.PlainOpen(repoRootOrWorktree)
	if err != nil {
		return nil, fmt.Errorf("open repo %s: %w", repoRootOrWorktree, err)
	}

	// go-git has no first-class stash API; a stash is just refs/stash plus
	// its reflog. Report the current tip, if one exists.
	ref, err := repo.Reference(plumbing.ReferenceName("refs/stash"), true)
	if err != nil {
		return []string{}, nil
	}
	return []string{ref.Hash().String()}, nil
}

// WorktreeDiff returns a unified diff of branch's tip against its parent
// commit, as plain text.
func (g *GoGitOps) WorktreeDiff(repoRoot, branch string) (string, error) {
	repo, err := git.PlainOpen(repoRoot)
	if err != nil {
		return "", fmt.Errorf("open repo %s: %w", repoRoot, err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return "", fmt.Errorf("resolve branch %s: %w", branch, err)
	}

	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return "", fmt.Errorf("load commit: %w", err)
	}

	parents := commit.Parents()
	parent, err := parents.Next()
	if err != nil {
		// Root commit: diff against the empty tree.
		tree, err := commit.Tree()
		if err != nil {
			return "", fmt.Errorf("load tree: %w", err)
		}
		patch, err := (&object.Tree{}).Patch(tree)
		if err != nil {
			return "", fmt.Errorf("diff against empty tree: %w", err)
		}
		return patch.String(), nil
	}

	patch, err := parent.Patch(commit)
	if err != nil {
		return "", fmt.Errorf("diff: %w", err)
	}
	return patch.String(), nil
}

// ChangedFiles returns the set of files changed by branch's tip commit
// relative to its parent.
func (g *GoGitOps) ChangedFiles(repoRoot, branch string) ([]ChangedFile, error) {
	repo, err := git.PlainOpen(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("open repo %s: %w", repoRoot, err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return nil, fmt.Errorf("resolve branch %s: %w", branch, err)
	}

	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load commit: %w", err)
	}

	parents := commit.Parents()
	parent, err := parents.Next()
	var changes object.Changes
	if err != nil {
		tree, terr := commit.Tree()
		if terr != nil {
			return nil, fmt.Errorf("load tree: %w", terr)
		}
		changes, err = object.DiffTree(&object.Tree{}, tree)
	} else {
		parentTree, terr := parent.Tree()
		if terr != nil {
			return nil, fmt.Errorf("load parent tree: %w", terr)
		}
		tree, terr := commit.Tree()
		if terr != nil {
			return nil, fmt.Errorf("load tree: %w", terr)
		}
		changes, err = object.DiffTree(parentTree, tree)
	}
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	var result []ChangedFile
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			continue
		}
		status := "modified"
		switch action {
		case merkletrie.Insert:
			status = "added"
		case merkletrie.Delete:
			status = "deleted"
		}
		path := change.To.Name
		if path == "" {
			path = change.From.Name
		}
		result = append(result, ChangedFile{Path: path, Status: status})
	}
	return result, nil
}
