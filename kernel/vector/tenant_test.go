package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantVectorIsolation(t *testing.T) {
	store := NewStore(Config{Dimensions: 3, Metric: Cosine})
	mgr := NewManager(store, nil)
	ctx := context.Background()

	require.NoError(t, mgr.CreateTenant(ctx, TenantConfig{TenantID: "tenant-1"}))
	require.NoError(t, mgr.CreateTenant(ctx, TenantConfig{TenantID: "tenant-2"}))

	_, err := mgr.InsertVectors(ctx, "tenant-1", []Entry{{ID: "t1_vec1", Embedding: []float32{1, 0, 0}}})
	require.NoError(t, err)
	_, err = mgr.InsertVectors(ctx, "tenant-2", []Entry{{ID: "t2_vec1", Embedding: []float32{0, 1, 0}}})
	require.NoError(t, err)

	results1, err := mgr.Search(ctx, "tenant-1", Query{Vector: []float32{1, 0, 0}, K: 10})
	require.NoError(t, err)
	require.Len(t, results1, 1)
	assert.Equal(t, "t1_vec1", results1[0].ID)

	results2, err := mgr.Search(ctx, "tenant-2", Query{Vector: []float32{1, 0, 0}, K: 10})
	require.NoError(t, err)
	require.Len(t, results2, 1)
	assert.Equal(t, "t2_vec1", results2[0].ID)
}

func TestUpdateMetadataOnTombstonedVectorErrors(t *testing.T) {
	store := NewStore(Config{Dimensions: 2, Metric: Euclidean})
	mgr := NewManager(store, nil)
	ctx := context.Background()
	require.NoError(t, mgr.CreateTenant(ctx, TenantConfig{TenantID: "t1"}))

	ids, err := mgr.InsertVectors(ctx, "t1", []Entry{{Embedding: []float32{1, 2}}})
	require.NoError(t, err)

	scope := tenantScope("t1")
	require.NoError(t, store.Delete(scope, ids))

	err = store.UpdateMetadata(scope, ids[0], map[string]interface{}{"k": "v"})
	require.Error(t, err)
}

func TestDistanceThresholdContract(t *testing.T) {
	assert.InDelta(t, 1.0, similarity(Cosine, 0), 0.0001)
	assert.InDelta(t, 0.5, similarity(Cosine, 1), 0.0001)
	assert.InDelta(t, 1.0, similarity(Euclidean, 0), 0.0001)
	assert.InDelta(t, 0.5, similarity(Euclidean, 1), 0.0001)
}
