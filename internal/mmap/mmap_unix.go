//go:build unix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

func openMapping(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := fi.Size()
	if size == 0 {
		return &Mapping{}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}

	return &Mapping{data: data, mapped: true}, nil
}

func unmap(data []byte) error {
	return unix.Munmap(data)
}
