package model

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

const (
	ClusterKindSemantic = "semantic"
	ClusterAlgorithm    = "vector-neighbor-v1"
)

// Property keys on kg.cluster entities.
const (
	PropClusterKind = "clusterKind"
	PropSeedIDs     = "seedIds"
	PropMemberCount = "memberCount"
	PropSimilarity  = "similarity"
	PropAlgorithm   = "algorithm"
	PropWindowStart = "windowStart"
	PropWindowEnd   = "windowEnd"
)

// ClusterKey builds the deterministic identity key for a member set under
// a scope and window. The same member set under the same scope and window
// always yields the same key, which makes cluster rebuilds idempotent.
func ClusterKey(scope Scope, window Window, memberIDs []string) string {
	sorted := append([]string(nil), memberIDs...)
	sort.Strings(sorted)
	return strings.Join([]string{scope.TenantID, scope.ProjectKey, window.Key(), strings.Join(sorted, ",")}, "|")
}

// ClusterID derives the fixed-width content-addressed cluster id from a
// cluster key. Any stable digest would do; sha256 truncated to 24 hex
// chars keeps ids short while staying collision-resistant at this scale.
func ClusterID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "cl_" + hex.EncodeToString(sum[:])[:24]
}

// ClusterProps is the typed view over a kg.cluster entity's property bag.
type ClusterProps struct {
	Kind        string
	SeedIDs     []string
	MemberCount int
	Similarity  float64
	Algorithm   string
	WindowStart *time.Time
	WindowEnd   *time.Time
}

func (c ClusterProps) ToProps() map[string]any {
	props := map[string]any{
		PropClusterKind: c.Kind,
		PropSeedIDs:     append([]string(nil), c.SeedIDs...),
		PropMemberCount: c.MemberCount,
		PropSimilarity:  c.Similarity,
		PropAlgorithm:   c.Algorithm,
	}
	if c.WindowStart != nil {
		props[PropWindowStart] = c.WindowStart.UTC().Format(time.RFC3339)
	}
	if c.WindowEnd != nil {
		props[PropWindowEnd] = c.WindowEnd.UTC().Format(time.RFC3339)
	}
	return props
}

// ClusterPropsFrom reads the typed cluster fields back out of an entity.
// Unknown extension fields stay in the entity's generic bag.
func ClusterPropsFrom(e *Entity) ClusterProps {
	c := ClusterProps{
		Kind:      e.Str(PropClusterKind),
		Algorithm: e.Str(PropAlgorithm),
	}
	switch v := e.Props[PropSeedIDs].(type) {
	case []string:
		c.SeedIDs = v
	case []any:
		for _, s := range v {
			if str, ok := s.(string); ok {
				c.SeedIDs = append(c.SeedIDs, str)
			}
		}
	}
	switch v := e.Props[PropMemberCount].(type) {
	case int:
		c.MemberCount = v
	case int64:
		c.MemberCount = int(v)
	case float64:
		c.MemberCount = int(v)
	}
	if v, ok := e.Props[PropSimilarity].(float64); ok {
		c.Similarity = v
	}
	if v, err := time.Parse(time.RFC3339, e.Str(PropWindowStart)); err == nil {
		c.WindowStart = &v
	}
	if v, err := time.Parse(time.RFC3339, e.Str(PropWindowEnd)); err == nil {
		c.WindowEnd = &v
	}
	return c
}
