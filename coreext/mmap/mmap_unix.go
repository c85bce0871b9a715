//go:build unix

package mmap

import (
	"io/fs"

	"golang.org/x/sys/unix"
)

// openMap maps the file at path read-only and returns the mapped bytes. A
// zero-length file yields a nil slice with no mapping.
func openMap(path string) ([]byte, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: path, Err: err}
	}
	defer unix.Close(fd)
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, &fs.PathError{Op: "stat", Path: path, Err: err}
	}
	if st.Size == 0 {
		return nil, nil
	}
	data, err := unix.Mmap(fd, 0, int(st.Size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, &fs.PathError{Op: "mmap", Path: path, Err: err}
	}
	return data, nil
}

// closeMap unmaps bytes returned by openMap.
func closeMap(data []byte) error {
	if data == nil {
		return nil
	}
	return unix.Munmap(data)
}
