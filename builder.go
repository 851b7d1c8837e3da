package sqvec

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/sqvec/sqvec/hnsw"
	"github.com/sqvec/sqvec/resource"
	"github.com/sqvec/sqvec/space"
)

// Metric selects the distance space records are compared with.
type Metric int

const (
	// MetricSquaredL2 ranks by squared Euclidean distance.
	MetricSquaredL2 Metric = iota
	// MetricInnerProduct ranks by 1 - inner product, clamped to [0, 2].
	// Intended for vectors normalized before insert.
	MetricInnerProduct
)

func (m Metric) String() string {
	switch m {
	case MetricSquaredL2:
		return "SquaredL2"
	case MetricInnerProduct:
		return "InnerProduct"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// Builder is an immutable fluent builder for DB instances.
// Each method returns a new builder with the updated configuration.
type Builder struct {
	dimension int
	metric    Metric
	m         int
	ef        int
	heuristic bool
	seed      int64
	logger    *Logger
	resources *resource.Controller
}

// New creates a DB builder for the given vector dimensionality.
//
//	db, err := sqvec.New(128).InnerProduct().M(32).EF(200).Build()
func New(dimension int) Builder {
	return Builder{
		dimension: dimension,
		metric:    MetricSquaredL2,
		m:         hnsw.DefaultOptions.M,
		ef:        hnsw.DefaultOptions.EF,
		heuristic: hnsw.DefaultOptions.Heuristic,
	}
}

// SquaredL2 sets the metric to squared Euclidean distance.
func (b Builder) SquaredL2() Builder {
	b.metric = MetricSquaredL2
	return b
}

// InnerProduct sets the metric to the clamped inner-product distance.
func (b Builder) InnerProduct() Builder {
	b.metric = MetricInnerProduct
	return b
}

// M sets the maximum number of graph connections per layer.
// Higher values improve recall but increase memory usage.
func (b Builder) M(m int) Builder {
	b.m = m
	return b
}

// EF sets the construction-time exploration factor.
// Higher values improve graph quality but slow down inserts.
func (b Builder) EF(ef int) Builder {
	b.ef = ef
	return b
}

// Heuristic toggles the diversity-preferring neighbour selection.
func (b Builder) Heuristic(enabled bool) Builder {
	b.heuristic = enabled
	return b
}

// Seed fixes the level-generation seed for reproducible graphs.
func (b Builder) Seed(seed int64) Builder {
	b.seed = seed
	return b
}

// Logger sets the structured logger. Defaults to a no-op logger.
func (b Builder) Logger(logger *Logger) Builder {
	b.logger = logger
	return b
}

// Resources sets the resource controller bounding batch encodes and
// snapshot transfers. Defaults to unlimited.
func (b Builder) Resources(c *resource.Controller) Builder {
	b.resources = c
	return b
}

// Build validates the configuration and creates the DB.
func (b Builder) Build() (*DB, error) {
	if b.dimension <= 0 {
		return nil, &ErrInvalidDimension{Dimension: b.dimension}
	}

	s, err := newSpace(b.metric, b.dimension)
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = NoopLogger()
	}

	graph := hnsw.New(s, func(o *hnsw.Options) {
		o.M = b.m
		o.EF = b.ef
		o.Heuristic = b.heuristic
		o.RandomSeed = b.seed
	})

	return &DB{
		dimension: b.dimension,
		metric:    b.metric,
		space:     s,
		graph:     graph,
		deleted:   roaring.New(),
		logger:    logger,
		resources: b.resources,
	}, nil
}

func newSpace(metric Metric, dim int) (space.Space, error) {
	switch metric {
	case MetricSquaredL2:
		return space.NewL2Space(dim), nil
	case MetricInnerProduct:
		return space.NewInnerProductSpace(dim), nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", metric)
	}
}
