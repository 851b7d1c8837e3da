//go:build !unix

package mmap

import "os"

func openMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data}, nil
}

func unmap([]byte) error {
	return nil
}
