package hnsw

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Compile time checks to ensure HNSW satisfies the gob interfaces.
var (
	_ gob.GobEncoder = (*HNSW)(nil)
	_ gob.GobDecoder = (*HNSW)(nil)
)

// GobEncode serializes the graph structure and records. The distance space
// is not serialized; decoding requires a graph constructed with a space of
// the same dimensionality.
func (h *HNSW) GobEncode() ([]byte, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	var buf bytes.Buffer
	encoder := gob.NewEncoder(&buf)

	if err := encoder.Encode(h.space.Dim()); err != nil {
		return nil, err
	}

	if err := encoder.Encode(h.ml); err != nil {
		return nil, err
	}

	if err := encoder.Encode(h.ep); err != nil {
		return nil, err
	}

	if err := encoder.Encode(h.maxLevel); err != nil {
		return nil, err
	}

	if err := encoder.Encode(h.nodes); err != nil {
		return nil, err
	}

	if err := encoder.Encode(h.opts); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// GobDecode restores a graph serialized with GobEncode into h. The space h
// was constructed with must match the encoded dimensionality.
func (h *HNSW) GobDecode(data []byte) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	decoder := gob.NewDecoder(bytes.NewBuffer(data))

	var dim int
	if err := decoder.Decode(&dim); err != nil {
		return err
	}

	if dim != h.space.Dim() {
		return fmt.Errorf("encoded dimension %d does not match space dimension %d", dim, h.space.Dim())
	}

	if err := decoder.Decode(&h.ml); err != nil {
		return err
	}

	if err := decoder.Decode(&h.ep); err != nil {
		return err
	}

	if err := decoder.Decode(&h.maxLevel); err != nil {
		return err
	}

	if err := decoder.Decode(&h.nodes); err != nil {
		return err
	}

	if err := decoder.Decode(&h.opts); err != nil {
		return err
	}

	h.mmax = h.opts.M
	h.mmax0 = 2 * h.opts.M

	return nil
}
