//go:build !unix

package mmap

import "errors"

var errUnsupported = errors.New("memory mapping is not supported on this platform")

func openMap(path string) ([]byte, error) {
	return nil, errUnsupported
}

func closeMap(data []byte) error {
	return nil
}
