package corpus

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNeo4jUnavailable skips the test if Neo4j is not available.
// Set NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD env vars to override the defaults.
func skipIfNeo4jUnavailable(t *testing.T) *Neo4jSource {
	t.Helper()

	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		uri = "bolt://localhost:7687"
	}
	user := os.Getenv("NEO4J_USER")
	if user == "" {
		user = "neo4j"
	}
	password := os.Getenv("NEO4J_PASSWORD")

	src, err := NewNeo4jSource(uri, user, password, os.Getenv("NEO4J_DATABASE"), nil)
	if err != nil {
		t.Skipf("Neo4j not available at %s: %v", uri, err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := src.VerifyConnectivity(ctx); err != nil {
		src.Close()
		t.Skipf("Neo4j connection failed: %v", err)
		return nil
	}
	return src
}

func TestNeo4jSource(t *testing.T) {
	src := skipIfNeo4jUnavailable(t)
	defer src.Close()
	ctx := context.Background()

	n, err := src.Count(ctx)
	require.NoError(t, err)

	relations, err := src.RelationIDs(ctx)
	require.NoError(t, err)
	if n > 0 {
		assert.NotEmpty(t, relations)
	}

	first, err := src.Batch(ctx, 0, 10)
	require.NoError(t, err)
	again, err := src.Batch(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, first, again, "paging must be stable")

	entities, err := src.EntityIDs(ctx)
	require.NoError(t, err)
	known := make(map[string]bool, len(entities))
	for _, e := range entities {
		known[string(e)] = true
	}
	for _, triplet := range first {
		assert.True(t, known[string(triplet.Head)])
		assert.True(t, known[string(triplet.Tail)])
	}

	name, err := src.EntityName(ctx, "not-a-number")
	require.NoError(t, err)
	assert.Empty(t, name)
}
