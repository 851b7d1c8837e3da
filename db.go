package sqvec

import (
	"bytes"
	"context"
	"encoding/gob"
	"runtime"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/sqvec/sqvec/hnsw"
	"github.com/sqvec/sqvec/quantization"
	"github.com/sqvec/sqvec/resource"
	"github.com/sqvec/sqvec/space"
)

// SearchResult is a single search hit.
type SearchResult struct {
	ID       uint32
	Distance float32
}

// SearchOptions configures a single search call.
type SearchOptions struct {
	// EF is the search-time exploration factor. Values below k are raised
	// to k. Default: 100.
	EF int
}

// DB is an embedded ANN store over int8-quantized vectors.
// All methods are safe for concurrent use.
type DB struct {
	dimension int
	metric    Metric
	space     space.Space
	graph     *hnsw.HNSW
	logger    *Logger
	resources *resource.Controller

	mu      sync.RWMutex
	deleted *roaring.Bitmap
}

// Dimension returns the configured vector dimensionality.
func (db *DB) Dimension() int {
	return db.dimension
}

// Metric returns the configured distance metric.
func (db *DB) Metric() Metric {
	return db.metric
}

// Len returns the number of live (non-deleted) vectors.
func (db *DB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.graph.Len() - 1 - int(db.deleted.GetCardinality())
}

// Insert quantizes v and adds it to the index, returning its ID.
func (db *DB) Insert(v []float32) (uint32, error) {
	if len(v) != db.dimension {
		return 0, &ErrDimensionMismatch{Expected: db.dimension, Actual: len(v)}
	}

	record := make([]byte, quantization.RecordSize(db.dimension))
	scale := quantization.PackRecord(v, record)

	id, err := db.graph.Insert(record)
	if err != nil {
		return 0, err
	}

	db.logger.Debug("inserted vector", "id", id, "scale", scale)
	return id, nil
}

// BatchInsert quantizes all vectors in parallel and inserts them.
// Returned IDs are positionally aligned with vectors. The first
// dimensionality error aborts the batch before any insert.
func (db *DB) BatchInsert(vectors [][]float32) ([]uint32, error) {
	release, err := db.resources.Reserve(context.Background(),
		int64(len(vectors))*int64(quantization.RecordSize(db.dimension)))
	if err != nil {
		return nil, err
	}
	defer release()

	records := make([][]byte, len(vectors))

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, v := range vectors {
		i, v := i, v
		g.Go(func() error {
			if len(v) != db.dimension {
				return &ErrDimensionMismatch{Expected: db.dimension, Actual: len(v)}
			}
			records[i] = make([]byte, quantization.RecordSize(db.dimension))
			quantization.PackRecord(v, records[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := make([]uint32, len(records))
	for i, record := range records {
		id, err := db.graph.Insert(record)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}

	db.logger.Debug("batch insert complete", "count", len(ids))
	return ids, nil
}

// Search returns the k approximate nearest neighbours of q, closest first.
// Deleted vectors are excluded.
func (db *DB) Search(q []float32, k int, optFns ...func(o *SearchOptions)) ([]SearchResult, error) {
	return db.search(q, k, false, optFns...)
}

// ExactSearch scans all live vectors and returns the exact k nearest under
// the quantized metric. Intended for recall measurement and small datasets.
func (db *DB) ExactSearch(q []float32, k int, optFns ...func(o *SearchOptions)) ([]SearchResult, error) {
	return db.search(q, k, true, optFns...)
}

func (db *DB) search(q []float32, k int, exact bool, optFns ...func(o *SearchOptions)) ([]SearchResult, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(q) != db.dimension {
		return nil, &ErrDimensionMismatch{Expected: db.dimension, Actual: len(q)}
	}

	opts := SearchOptions{EF: 100}
	for _, fn := range optFns {
		fn(&opts)
	}

	record := make([]byte, quantization.RecordSize(db.dimension))
	quantization.PackRecord(q, record)

	db.mu.RLock()
	defer db.mu.RUnlock()

	filter := func(id uint32) bool {
		return !db.deleted.Contains(id)
	}

	var (
		hits []hnsw.Result
		err  error
	)
	if exact {
		hits, err = db.graph.BruteSearch(record, k, filter)
	} else {
		hits, err = db.graph.KNNSearch(record, k, opts.EF, filter)
	}
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, len(hits))
	for i, hit := range hits {
		results[i] = SearchResult{ID: hit.ID, Distance: hit.Distance}
	}
	return results, nil
}

// Delete tombstones a vector. The record remains in the graph for
// traversal but never surfaces in results.
func (db *DB) Delete(id uint32) error {
	if _, ok := db.graph.Record(id); !ok || id == 0 {
		return ErrNotFound
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.deleted.Contains(id) {
		return ErrNotFound
	}

	db.deleted.Add(id)
	db.logger.Debug("deleted vector", "id", id)
	return nil
}

// Reconstruct returns the dequantized approximation of a stored vector.
func (db *DB) Reconstruct(id uint32) ([]float32, error) {
	db.mu.RLock()
	deleted := db.deleted.Contains(id)
	db.mu.RUnlock()

	record, ok := db.graph.Record(id)
	if !ok || id == 0 || deleted {
		return nil, ErrNotFound
	}

	v := make([]float32, db.dimension)
	quantization.UnpackRecord(record, db.dimension, v)
	return v, nil
}

// Stats returns index statistics.
func (db *DB) Stats() hnsw.Stats {
	return db.graph.Stats()
}

// Compile time checks to ensure DB satisfies the gob interfaces.
var (
	_ gob.GobEncoder = (*DB)(nil)
	_ gob.GobDecoder = (*DB)(nil)
)

// GobEncode serializes the full DB state: configuration, graph, records
// and tombstones.
func (db *DB) GobEncode() ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var buf bytes.Buffer
	encoder := gob.NewEncoder(&buf)

	if err := encoder.Encode(db.dimension); err != nil {
		return nil, err
	}

	if err := encoder.Encode(db.metric); err != nil {
		return nil, err
	}

	graphData, err := db.graph.GobEncode()
	if err != nil {
		return nil, err
	}
	if err := encoder.Encode(graphData); err != nil {
		return nil, err
	}

	deletedData, err := db.deleted.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if err := encoder.Encode(deletedData); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// GobDecode restores a DB serialized with GobEncode. Works on a zero DB;
// any previous state is replaced.
func (db *DB) GobDecode(data []byte) error {
	decoder := gob.NewDecoder(bytes.NewBuffer(data))

	var dimension int
	if err := decoder.Decode(&dimension); err != nil {
		return err
	}

	var metric Metric
	if err := decoder.Decode(&metric); err != nil {
		return err
	}

	s, err := newSpace(metric, dimension)
	if err != nil {
		return err
	}

	graph := hnsw.New(s)
	var graphData []byte
	if err := decoder.Decode(&graphData); err != nil {
		return err
	}
	if err := graph.GobDecode(graphData); err != nil {
		return err
	}

	deleted := roaring.New()
	var deletedData []byte
	if err := decoder.Decode(&deletedData); err != nil {
		return err
	}
	if err := deleted.UnmarshalBinary(deletedData); err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	db.dimension = dimension
	db.metric = metric
	db.space = s
	db.graph = graph
	db.deleted = deleted
	if db.logger == nil {
		db.logger = NoopLogger()
	}

	return nil
}
