// Package mmap provides read-only memory-mapped file access with a
// portable fallback that reads the file into memory on platforms without
// mmap support.
package mmap

// Mapping is a read-only view of a file's contents.
type Mapping struct {
	data   []byte
	mapped bool
}

// Open maps the file at path for reading.
func Open(path string) (*Mapping, error) {
	return openMapping(path)
}

// Bytes returns the mapped contents. The slice is valid until Close.
func (m *Mapping) Bytes() []byte {
	return m.data
}

// Close releases the mapping.
func (m *Mapping) Close() error {
	data := m.data
	m.data = nil

	if !m.mapped || len(data) == 0 {
		return nil
	}
	return unmap(data)
}
