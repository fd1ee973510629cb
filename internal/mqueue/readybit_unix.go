//go:build !windows

package mqueue

import "golang.org/x/sys/unix"

// readyBitCleared reports whether path's owner-execute bit has been cleared,
// the on-disk signal original_source/.../mq_open.c's creation handshake
// polls for: a queue's backing file is created with the execute bit set
// (not ready) and the creator clears it once the header is initialized.
// Checked with unix.Access rather than os.Stat's mode bits so the check
// exercises the same syscall the original's POSIX backend issues.
func readyBitCleared(path string) bool {
	return unix.Access(path, unix.X_OK) != nil
}
