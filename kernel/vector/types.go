// Package vector implements the tenant-isolated HNSW-style vector store
// (C14) and the multi-tenant manager wrapping it (C15). The reference index
// is a brute-force scan behind the same interface a true HNSW graph would
// implement (Open Question 1): recall is exact, not approximate.
package vector

import (
	"github.com/google/uuid"

	"github.com/flowforge/kernel/kernel/ctx"
)

// Metric is the configurable distance metric used by a namespace's index.
type Metric string

const (
	Cosine       Metric = "cosine"
	Euclidean    Metric = "euclidean"
	InnerProduct Metric = "inner_product"
	Manhattan    Metric = "manhattan"
)

// Config carries the HNSW-shaped configuration fields even though the
// reference index is brute force; a true graph implementation would read
// M/EfConstruction/EfSearch/MaxElements directly.
type Config struct {
	Dimensions     int
	M              int
	EfConstruction int
	EfSearch       int
	MaxElements    int
	Metric         Metric
}

// Entry is a stored vector plus its scope and metadata.
type Entry struct {
	ID        string
	Embedding []float32
	Scope     ctx.Scope
	TenantID  string
	Metadata  map[string]interface{}
}

// Query describes a nearest-neighbour search.
type Query struct {
	Vector          []float32
	K               int
	Scope           *ctx.Scope
	Filter          map[string]interface{}
	Threshold       *float64
	IncludeMetadata bool
}

// Result is a single scored match.
type Result struct {
	ID       string
	Score    float64 // similarity, derived from Distance per the metric's contract
	Vector   []float32
	Metadata map[string]interface{}
	Distance float64
}

// Stats describes a namespace's index state.
type Stats struct {
	VectorCount    int
	MemoryBytes    int64
	AvgConnections float64
	BuildTimeMS    *int64
	LastOptimized  *int64
}

// NewID generates a fresh vector id when the caller omits one.
func NewID() string {
	return uuid.NewString()
}

// NamespaceName maps a scope onto a vector index partition: Global maps to
// "__global__", everything else to "type:id".
func NamespaceName(scope ctx.Scope) string {
	if scope.Tag == ctx.ScopeGlobal {
		return "__global__"
	}
	return string(scope.Tag) + ":" + scope.Value
}
