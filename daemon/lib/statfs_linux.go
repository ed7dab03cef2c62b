package lib

import "syscall"

// statfsT aliases the platform statfs result type so mount.go stays
// syscall-import-free outside this file.
type statfsT = syscall.Statfs_t

// statfs is a thin wrapper over syscall.Statfs; free-space accounting is a
// single direct syscall.
func statfs(path string, buf *statfsT) error {
	return syscall.Statfs(path, buf)
}
