// Package vcs reads run metadata from the local git checkout: the commit a
// pipeline run executes against and the branch it was triggered from.
package vcs

import (
	gogit "github.com/go-git/go-git/v5"

	"github.com/spindleci/spindle/errors"
	"github.com/spindleci/spindle/pipeline"
)

// Head describes the current checkout.
type Head struct {
	// CommitRef is the full commit hash HEAD points at.
	CommitRef string

	// Branch is the checked-out branch name. Empty when HEAD is detached.
	Branch string
}

// Describe opens the repository at path and reads HEAD.
func Describe(path string) (*Head, error) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return nil, errors.Wrapf(errors.CodeInvalidInput, err, "opening repository %s", path)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, errors.Wrap(errors.CodeInvalidInput, err, "resolving HEAD")
	}

	h := &Head{CommitRef: head.Hash().String()}
	if head.Name().IsBranch() {
		h.Branch = head.Name().Short()
	}
	return h, nil
}

// Trigger builds a pipeline trigger from the checkout. Detached HEADs have no
// branch, so the caller may supply one explicitly; otherwise the checked-out
// branch is used.
func Trigger(path string, event pipeline.EventType, branch string) (pipeline.Trigger, error) {
	head, err := Describe(path)
	if err != nil {
		return pipeline.Trigger{}, err
	}
	if branch == "" {
		branch = head.Branch
	}
	if branch == "" {
		return pipeline.Trigger{}, errors.New(errors.CodeInvalidInput,
			"detached HEAD: branch must be provided")
	}
	return pipeline.Trigger{
		Event:     event,
		Branch:    branch,
		CommitRef: head.CommitRef,
	}, nil
}
