package gitrepo

import "fmt"

// CloneError means the working copy could not be prepared: the directory could not
// be removed or created, or the remote could not be cloned.
type CloneError struct {
	Remote string
	Dir    string
	Err    error
}

func (e *CloneError) Error() string {
	return fmt.Sprintf("clone %s into %s: %v", e.Remote, e.Dir, e.Err)
}

func (e *CloneError) Unwrap() error { return e.Err }

// BranchError means the branch could not be checked out or created as an orphan.
type BranchError struct {
	Branch string
	Err    error
}

func (e *BranchError) Error() string {
	return fmt.Sprintf("prepare branch %s: %v", e.Branch, e.Err)
}

func (e *BranchError) Unwrap() error { return e.Err }

// PushError is a push that failed for any reason other than the remote refusing the update.
type PushError struct {
	Branch string
	Err    error
}

func (e *PushError) Error() string {
	return fmt.Sprintf("push %s: %v", e.Branch, e.Err)
}

func (e *PushError) Unwrap() error { return e.Err }

// PushRejectedError is a push the remote refused, e.g. a non-fast-forward update.
type PushRejectedError struct {
	Branch  string
	Summary string
}

func (e *PushRejectedError) Error() string {
	return fmt.Sprintf("push %s rejected: %s", e.Branch, e.Summary)
}
