package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusterKey_OrderInsensitive(t *testing.T) {
	scope := Scope{TenantID: "t1", ProjectKey: "alpha"}
	a := ClusterKey(scope, Window{}, []string{"work-1", "doc-1"})
	b := ClusterKey(scope, Window{}, []string{"doc-1", "work-1"})
	assert.Equal(t, a, b)
}

func TestClusterKey_ScopeAndWindowChangeIdentity(t *testing.T) {
	members := []string{"work-1", "doc-1"}
	base := ClusterKey(Scope{TenantID: "t1", ProjectKey: "alpha"}, Window{}, members)

	otherTenant := ClusterKey(Scope{TenantID: "t2", ProjectKey: "alpha"}, Window{}, members)
	assert.NotEqual(t, base, otherTenant)

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	windowed := ClusterKey(Scope{TenantID: "t1", ProjectKey: "alpha"}, Window{Start: &start}, members)
	assert.NotEqual(t, base, windowed)
}

func TestClusterID_Shape(t *testing.T) {
	id := ClusterID("t1|alpha||doc-1,work-1")
	assert.Len(t, id, 27)
	assert.Equal(t, "cl_", id[:3])
	// Same key, same id.
	assert.Equal(t, id, ClusterID("t1|alpha||doc-1,work-1"))
}

func TestClusterProps_RoundTrip(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	props := ClusterProps{
		Kind:        ClusterKindSemantic,
		SeedIDs:     []string{"work-1"},
		MemberCount: 2,
		Similarity:  0.95,
		Algorithm:   ClusterAlgorithm,
		WindowStart: &start,
	}

	e := &Entity{ID: "cl_x", Type: EntityCluster, Props: props.ToProps()}
	got := ClusterPropsFrom(e)

	assert.Equal(t, props.Kind, got.Kind)
	assert.Equal(t, props.SeedIDs, got.SeedIDs)
	assert.Equal(t, props.MemberCount, got.MemberCount)
	assert.Equal(t, props.Similarity, got.Similarity)
	assert.Equal(t, props.Algorithm, got.Algorithm)
	require.NotNil(t, got.WindowStart)
	assert.True(t, got.WindowStart.Equal(start))
	assert.Nil(t, got.WindowEnd)
}

func TestScopeAdmits(t *testing.T) {
	owned := Scope{TenantID: "t1", ProjectKey: "alpha"}

	assert.True(t, Scope{TenantID: "t1", ProjectKey: "alpha"}.Admits(owned))
	assert.True(t, Scope{TenantID: "t1"}.Admits(owned))
	assert.False(t, Scope{TenantID: "t1", ProjectKey: "beta"}.Admits(owned))
	assert.False(t, Scope{TenantID: "t2", ProjectKey: "alpha"}.Admits(owned))
}

func TestWindowContains(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	w := Window{Start: &start, End: &end}

	assert.True(t, w.Contains(start))
	assert.True(t, w.Contains(end))
	assert.True(t, w.Contains(start.Add(time.Hour)))
	assert.False(t, w.Contains(start.Add(-time.Second)))
	assert.False(t, w.Contains(end.Add(time.Second)))

	assert.True(t, Window{}.IsZero())
	assert.Equal(t, "", Window{}.Key())
}
