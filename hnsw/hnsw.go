// Package hnsw implements a Hierarchical Navigable Small World graph over
// int8-quantized vector records.
//
// The graph stores packed records (see the quantization package) and never
// inspects their layout: all comparisons go through the space.Space bound at
// construction time.
package hnsw

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/sqvec/sqvec/internal/visited"
	"github.com/sqvec/sqvec/quantization"
	"github.com/sqvec/sqvec/queue"
	"github.com/sqvec/sqvec/space"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
)

// ErrRecordSizeMismatch indicates a record whose byte size does not match
// the space the graph was built with.
type ErrRecordSizeMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrRecordSizeMismatch) Error() string {
	return fmt.Sprintf("record size mismatch: expected %d bytes, got %d", e.Expected, e.Actual)
}

// FilterFunc restricts search results; return false to skip a node.
type FilterFunc func(id uint32) bool

// Result is a single search hit.
type Result struct {
	ID       uint32
	Distance float32
}

// Node represents a node in the HNSW graph.
type Node struct {
	Connections [][]uint32 // Links to other nodes, one list per layer
	Record      []byte     // Packed quantized record
	Layer       int        // Highest layer the node exists in
	ID          uint32
}

// Options represents the options for configuring HNSW.
type Options struct {
	// M specifies the number of established connections for every new
	// element during construction. The range 12-48 works for most use
	// cases; higher M suits high-dimensional data and high recall.
	M int

	// EF specifies the size of the dynamic candidate list during
	// construction. Larger values improve graph quality at the cost of
	// slower inserts.
	EF int

	// Heuristic selects the neighbour-selection heuristic from the HNSW
	// paper instead of naive closest-first linking.
	Heuristic bool

	// RandomSeed seeds level generation. Zero means a fixed default, which
	// keeps graph construction reproducible.
	RandomSeed int64
}

// DefaultOptions holds the default configuration.
var DefaultOptions = Options{
	M:         16,
	EF:        200,
	Heuristic: true,
}

// HNSW represents the hierarchical navigable small world graph.
type HNSW struct {
	space    space.Space
	mmax     int     // Max connections per node per layer
	mmax0    int     // Max connections on layer 0
	ml       float64 // Normalization factor for level generation
	ep       uint32  // Entry point node
	maxLevel int

	nodes []*Node
	rng   *rand.Rand

	opts Options

	mutex sync.RWMutex
}

// New creates a new graph whose records are compared with s.
// The graph is seeded with a zero entry-point record.
func New(s space.Space, optFns ...func(o *Options)) *HNSW {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.M < 2 {
		// M == 1 would make the level normalization 1/log(M) divide by zero.
		opts.M = 2
	}

	entry := &Node{
		ID:          0,
		Layer:       0,
		Record:      zeroRecord(s),
		Connections: make([][]uint32, 2*opts.M+1),
	}

	return &HNSW{
		space: s,
		mmax:  opts.M,
		mmax0: 2 * opts.M,
		ml:    1 / math.Log(float64(opts.M)),
		nodes: []*Node{entry},
		rng:   rand.New(rand.NewSource(opts.RandomSeed)),
		opts:  opts,
	}
}

// Space returns the distance space the graph was constructed with.
func (h *HNSW) Space() space.Space {
	return h.space
}

// Len returns the number of nodes in the graph, including the entry
// sentinel.
func (h *HNSW) Len() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.nodes)
}

// Insert adds a packed record to the graph and returns its node ID.
// The record is copied; the caller keeps ownership of its buffer.
func (h *HNSW) Insert(record []byte) (uint32, error) {
	if len(record) != h.space.DataSize() {
		return 0, &ErrRecordSizeMismatch{Expected: h.space.DataSize(), Actual: len(record)}
	}

	recordCopy := make([]byte, len(record))
	copy(recordCopy, record)

	h.mutex.Lock()
	defer h.mutex.Unlock()

	id := uint32(len(h.nodes))
	layer := int(math.Floor(-math.Log(h.rng.Float64()) * h.ml))

	node := &Node{
		ID:          id,
		Record:      recordCopy,
		Layer:       layer,
		Connections: make([][]uint32, max(layer, h.mmax)+1),
	}

	// Greedy descent through the layers above the node's top layer gives
	// the starting point for candidate search.
	currObj, currDist := h.descendToLayer(node.Record, node.Layer)

	topCandidates := &queue.PriorityQueue{}

	for level := min(node.Layer, h.maxLevel); level >= 0; level-- {
		h.searchLayer(node.Record, &queue.Item{Distance: currDist, Node: currObj.ID}, topCandidates, h.opts.EF, level, nil)

		if h.opts.Heuristic {
			h.selectNeighboursHeuristic(topCandidates, h.opts.M, false)
		} else {
			h.selectNeighboursSimple(topCandidates, h.opts.M)
		}

		node.Connections[level] = make([]uint32, topCandidates.Len())

		for i := topCandidates.Len() - 1; i >= 0; i-- {
			candidate, _ := heap.Pop(topCandidates).(*queue.Item)
			node.Connections[level][i] = candidate.Node
		}
	}

	h.nodes = append(h.nodes, node)

	// Link back from the neighbours, making the node visible.
	for level := min(node.Layer, h.maxLevel); level >= 0; level-- {
		for _, neighbour := range node.Connections[level] {
			h.link(neighbour, node.ID, level)
		}
	}

	if node.Layer > h.maxLevel {
		h.ep = node.ID
		h.maxLevel = node.Layer
	}

	return node.ID, nil
}

// Record returns the packed record stored for the given node ID.
// The returned slice is owned by the graph and must not be mutated.
func (h *HNSW) Record(id uint32) ([]byte, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if int(id) >= len(h.nodes) {
		return nil, false
	}
	return h.nodes[id].Record, true
}

// KNNSearch returns the k nearest nodes to the query record, closest first.
// efSearch bounds the candidate list; values below k are raised to k.
// A non-nil filter drops nodes from the result set (they are still used
// for traversal).
func (h *HNSW) KNNSearch(query []byte, k int, efSearch int, filter FilterFunc) ([]Result, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}

	if len(query) != h.space.DataSize() {
		return nil, &ErrRecordSizeMismatch{Expected: h.space.DataSize(), Actual: len(query)}
	}

	if efSearch < k {
		efSearch = k
	}

	// The entry sentinel is not a stored record and never surfaces.
	resultFilter := func(id uint32) bool {
		if id == 0 {
			return false
		}
		return filter == nil || filter(id)
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	currObj, currDist := h.descendToLayer(query, 0)

	topCandidates := &queue.PriorityQueue{Descending: true}
	heap.Init(topCandidates)

	h.searchLayer(query, &queue.Item{Distance: currDist, Node: currObj.ID}, topCandidates, efSearch, 0, resultFilter)

	for topCandidates.Len() > k {
		_ = heap.Pop(topCandidates)
	}

	return drainResults(topCandidates), nil
}

// BruteSearch scans every node and returns the exact k nearest under the
// graph's space. Intended for recall measurement and small datasets.
func (h *HNSW) BruteSearch(query []byte, k int, filter FilterFunc) ([]Result, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}

	if len(query) != h.space.DataSize() {
		return nil, &ErrRecordSizeMismatch{Expected: h.space.DataSize(), Actual: len(query)}
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	topCandidates := &queue.PriorityQueue{Descending: true}
	heap.Init(topCandidates)

	// Node 0 is the entry sentinel, not a stored vector.
	for _, node := range h.nodes[1:] {
		if filter != nil && !filter(node.ID) {
			continue
		}

		dist := h.space.Distance(query, node.Record)

		if topCandidates.Len() < k {
			heap.Push(topCandidates, &queue.Item{Node: node.ID, Distance: dist})
			continue
		}

		if dist < topCandidates.Top().Distance {
			heap.Pop(topCandidates)
			heap.Push(topCandidates, &queue.Item{Node: node.ID, Distance: dist})
		}
	}

	return drainResults(topCandidates), nil
}

// descendToLayer walks greedily from the entry point down to the given
// layer and returns the closest node found with its distance.
// Caller must hold the lock.
func (h *HNSW) descendToLayer(query []byte, layer int) (*Node, float32) {
	currObj := h.nodes[h.ep]
	currDist := h.space.Distance(currObj.Record, query)

	for level := currObj.Layer; level > layer; level-- {
		changed := true
		for changed {
			changed = false

			for _, id := range currObj.Connections[level] {
				next := h.nodes[id]

				if d := h.space.Distance(next.Record, query); d < currDist {
					currObj = next
					currDist = d
					changed = true
				}
			}
		}
	}

	return currObj, currDist
}

// searchLayer performs a bounded best-first search in one layer.
// Caller must hold the lock.
func (h *HNSW) searchLayer(query []byte, ep *queue.Item, topCandidates *queue.PriorityQueue, ef int, level int, filter FilterFunc) {
	vs := visited.New(len(h.nodes))
	vs.Visit(ep.Node)

	candidates := &queue.PriorityQueue{}
	heap.Init(candidates)
	heap.Push(candidates, ep)

	topCandidates.Descending = true // Furthest kept on top for bounded eviction
	heap.Init(topCandidates)
	if filter == nil || filter(ep.Node) {
		heap.Push(topCandidates, ep)
	}

	for candidates.Len() > 0 {
		var lowerBound float32 = math.MaxFloat32
		if topCandidates.Len() > 0 {
			lowerBound = topCandidates.Top().Distance
		}

		candidate, _ := heap.Pop(candidates).(*queue.Item)
		if candidate.Distance > lowerBound && topCandidates.Len() >= ef {
			break
		}

		node := h.nodes[candidate.Node]

		if len(node.Connections) > level {
			for _, n := range node.Connections[level] {
				if vs.Visited(n) {
					continue
				}
				vs.Visit(n)

				distance := h.space.Distance(query, h.nodes[n].Record)

				if topCandidates.Len() < ef {
					heap.Push(candidates, &queue.Item{Distance: distance, Node: n})
					if filter == nil || filter(n) {
						heap.Push(topCandidates, &queue.Item{Distance: distance, Node: n})
					}
				} else if topCandidates.Top().Distance > distance {
					heap.Push(candidates, &queue.Item{Distance: distance, Node: n})
					if filter == nil || filter(n) {
						heap.Pop(topCandidates)
						heap.Push(topCandidates, &queue.Item{Distance: distance, Node: n})
					}
				}
			}
		}
	}
}

// link connects first -> second at the given level, pruning back to the
// connection budget when it overflows.
// Caller must hold the lock.
func (h *HNSW) link(first, second uint32, level int) {
	maxConnections := h.mmax
	// Layer 0 allows double the connections.
	if level == 0 {
		maxConnections = h.mmax0
	}

	node := h.nodes[first]
	for len(node.Connections) <= level {
		node.Connections = append(node.Connections, nil)
	}
	node.Connections[level] = append(node.Connections[level], second)

	if len(node.Connections[level]) <= maxConnections {
		return
	}

	topCandidates := &queue.PriorityQueue{}
	heap.Init(topCandidates)

	for _, id := range node.Connections[level] {
		heap.Push(topCandidates, &queue.Item{
			Node:     id,
			Distance: h.space.Distance(node.Record, h.nodes[id].Record),
		})
	}

	if h.opts.Heuristic {
		h.selectNeighboursHeuristic(topCandidates, maxConnections, true)
	} else {
		h.selectNeighboursSimple(topCandidates, maxConnections)
	}

	node.Connections[level] = make([]uint32, maxConnections)

	// Best match first.
	for i := maxConnections - 1; i >= 0; i-- {
		item, _ := heap.Pop(topCandidates).(*queue.Item)
		node.Connections[level][i] = item.Node
	}
}

// selectNeighboursSimple keeps the M closest candidates.
func (h *HNSW) selectNeighboursSimple(topCandidates *queue.PriorityQueue, m int) {
	for topCandidates.Len() > m {
		_ = heap.Pop(topCandidates)
	}
}

// selectNeighboursHeuristic keeps up to M candidates preferring diversity:
// a candidate is taken only if it is closer to the base point than to every
// already-selected neighbour.
func (h *HNSW) selectNeighboursHeuristic(topCandidates *queue.PriorityQueue, m int, descending bool) {
	if topCandidates.Len() < m {
		return
	}

	newCandidates := &queue.PriorityQueue{}

	tmpCandidates := &queue.PriorityQueue{Descending: descending}
	heap.Init(tmpCandidates)

	items := make([]*queue.Item, 0, m)

	if !descending {
		newCandidates.Descending = false
		heap.Init(newCandidates)

		for topCandidates.Len() > 0 {
			item, _ := heap.Pop(topCandidates).(*queue.Item)
			heap.Push(newCandidates, item)
		}
	} else {
		newCandidates = topCandidates
	}

	for newCandidates.Len() > 0 {
		if len(items) >= m {
			break
		}

		item, _ := heap.Pop(newCandidates).(*queue.Item)
		hit := true

		for _, v := range items {
			d := h.space.Distance(h.nodes[v.Node].Record, h.nodes[item.Node].Record)
			if d < item.Distance {
				hit = false
				break
			}
		}

		if hit {
			items = append(items, item)
		} else {
			heap.Push(tmpCandidates, item)
		}
	}

	for len(items) < m && tmpCandidates.Len() > 0 {
		item, _ := heap.Pop(tmpCandidates).(*queue.Item)
		items = append(items, item)
	}

	for _, item := range items {
		heap.Push(topCandidates, item)
	}
}

// drainResults empties a max-ordered queue into a closest-first slice.
func drainResults(topCandidates *queue.PriorityQueue) []Result {
	results := make([]Result, topCandidates.Len())

	for i := topCandidates.Len() - 1; i >= 0; i-- {
		item, _ := heap.Pop(topCandidates).(*queue.Item)
		results[i] = Result{ID: item.Node, Distance: item.Distance}
	}

	return results
}

func zeroRecord(s space.Space) []byte {
	// A well-formed all-zero record carries scale 1.0.
	record := make([]byte, s.DataSize())
	quantization.PackRecord(make([]float32, s.Dim()), record)
	return record
}
