package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/soundprediction/kgembed/pkg/types"
)

const (
	neo4jCountQuery = `MATCH (h)-[r]->(t) RETURN count(*) AS count`

	neo4jBatchQuery = `
		MATCH (h)-[r]->(t)
		RETURN id(h) AS head, type(r) AS relation, id(t) AS tail
		ORDER BY id(r)
		SKIP $offset LIMIT $limit
	`

	neo4jEntitiesQuery = `MATCH (n) RETURN id(n) AS entity_id ORDER BY entity_id`

	neo4jRelationsQuery = `MATCH ()-[r]->() RETURN DISTINCT type(r) AS relation_type ORDER BY relation_type`

	neo4jNameQuery = `MATCH (n) WHERE id(n) = $entity_id RETURN n.name AS entity_name`
)

// Neo4jSource reads triplets from every relationship in a Neo4j (or
// Bolt-compatible) database. Entity ids are the database node ids.
type Neo4jSource struct {
	client   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewNeo4jSource creates a source connected to uri.
func NewNeo4jSource(uri, username, password, database string, logger *slog.Logger) (*Neo4jSource, error) {
	client, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if database == "" {
		database = "neo4j"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Neo4jSource{client: client, database: database, logger: logger}, nil
}

// VerifyConnectivity checks that the database is reachable.
func (n *Neo4jSource) VerifyConnectivity(ctx context.Context) error {
	return n.client.VerifyConnectivity(ctx)
}

func (n *Neo4jSource) read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: n.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return asRecords(result)
}

func (n *Neo4jSource) Count(ctx context.Context) (int, error) {
	records, err := n.read(ctx, neo4jCountQuery, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count triplets: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}
	v, _ := records[0].Get("count")
	return intValue(v, "count")
}

func (n *Neo4jSource) Batch(ctx context.Context, offset, limit int) ([]types.Triplet, error) {
	records, err := n.read(ctx, neo4jBatchQuery, map[string]any{
		"offset": int64(offset),
		"limit":  int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch triplets at offset %d: %w", offset, err)
	}
	out := make([]types.Triplet, 0, len(records))
	for _, record := range records {
		t, err := recordTriplet(record)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	n.logger.Debug("Fetched triplet batch", "offset", offset, "limit", limit, "count", len(out))
	return out, nil
}

func (n *Neo4jSource) EntityIDs(ctx context.Context) ([]types.EntityID, error) {
	records, err := n.read(ctx, neo4jEntitiesQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entities: %w", err)
	}
	out := make([]types.EntityID, 0, len(records))
	for _, record := range records {
		v, _ := record.Get("entity_id")
		id, err := entityIDValue(v, "entity_id")
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func (n *Neo4jSource) RelationIDs(ctx context.Context) ([]types.RelationID, error) {
	records, err := n.read(ctx, neo4jRelationsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch relation types: %w", err)
	}
	out := make([]types.RelationID, 0, len(records))
	for _, record := range records {
		v, _ := record.Get("relation_type")
		rel, err := stringValue(v, "relation_type")
		if err != nil {
			return nil, err
		}
		out = append(out, types.RelationID(rel))
	}
	return out, nil
}

// EntityName returns the node's name property, or "" if the node has none.
func (n *Neo4jSource) EntityName(ctx context.Context, id types.EntityID) (string, error) {
	nodeID, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return "", nil
	}
	records, err := n.read(ctx, neo4jNameQuery, map[string]any{"entity_id": nodeID})
	if err != nil {
		return "", fmt.Errorf("failed to fetch entity name: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}
	v, _ := records[0].Get("entity_name")
	name, _ := v.(string)
	return name, nil
}

func (n *Neo4jSource) Close() error {
	return n.client.Close(context.Background())
}
