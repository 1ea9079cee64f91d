// Package backup implements the scoped backup helper (C7): rename the
// original file aside while it is being rewritten in place, and guarantee
// that any failure after the rename restores the original before the error
// propagates. Grounded on original_source/backuphelper.h's create/restore
// shape and on billytoe-mp4-optimizer's rewriter.go, which expresses the
// same rename-then-restore-on-failure idiom in Go with a deferred success
// flag instead of RAII.
package backup

import (
	"fmt"
	"os"

	"github.com/mutwol/tagparser/containererr"
)

// Handle represents one in-flight backup. Create it with Create, and either
// call Commit (discard the backup, the rewrite succeeded) or Restore (put
// the original back, the rewrite failed) exactly once.
type Handle struct {
	originalPath string
	backupPath   string
	done         bool
}

// Create renames originalPath to a sibling ".bak" file (suffixed further if
// that path is already taken) and returns a Handle plus the backup path the
// caller should open read-only as its input stream.
func Create(originalPath string) (*Handle, string, error) {
	backupPath := originalPath + ".bak"
	for i := 1; fileExists(backupPath); i++ {
		backupPath = fmt.Sprintf("%s.bak%d", originalPath, i)
	}
	if err := os.Rename(originalPath, backupPath); err != nil {
		return nil, "", fmt.Errorf("create backup: %w", containererr.ErrIO)
	}
	return &Handle{originalPath: originalPath, backupPath: backupPath}, backupPath, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Commit discards the backup: the rewrite at originalPath succeeded and the
// backup is no longer needed.
func (h *Handle) Commit() error {
	if h.done {
		return nil
	}
	h.done = true
	if err := os.Remove(h.backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove backup: %w", containererr.ErrIO)
	}
	return nil
}

// Restore truncates/removes whatever is at originalPath and renames the
// backup back into place. This is handleFailureAfterFileModified from spec
// §4.3: call it on any error observed after Create succeeded, before
// propagating that error.
func (h *Handle) Restore() error {
	if h.done {
		return nil
	}
	h.done = true
	if fileExists(h.originalPath) {
		if err := os.Remove(h.originalPath); err != nil {
			return fmt.Errorf("remove partial output: %w", containererr.ErrIO)
		}
	}
	if err := os.Rename(h.backupPath, h.originalPath); err != nil {
		return fmt.Errorf("restore backup: %w", containererr.ErrIO)
	}
	return nil
}

// HandleFailureAfterFileModified restores the original from backup and
// returns an error that wraps both the restore outcome (if it failed) and
// the triggering cause, matching spec §4.3/§4.5/§7: any failure after backup
// creation must restore before the error propagates.
func HandleFailureAfterFileModified(h *Handle, cause error) error {
	if restoreErr := h.Restore(); restoreErr != nil {
		return fmt.Errorf("restore after failure (%w): %w", cause, restoreErr)
	}
	return cause
}
