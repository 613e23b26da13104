//go:build cgo

package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	ladybug "github.com/LadybugDB/go-ladybug"

	"github.com/soundprediction/kgembed/pkg/types"
)

// LadybugSchema is the embedded graph layout LadybugSource reads: entities
// keyed by string id, and one relationship table whose name property is the
// relation type.
const LadybugSchema = `
    CREATE NODE TABLE IF NOT EXISTS Entity (
        id STRING PRIMARY KEY,
        name STRING
    );
    CREATE REL TABLE IF NOT EXISTS RELATES_TO (
        FROM Entity TO Entity,
        name STRING
    );
`

// LadybugSource reads triplets from an embedded Ladybug graph database.
type LadybugSource struct {
	mu     sync.Mutex
	db     *ladybug.Database
	conn   *ladybug.Connection
	logger *slog.Logger
}

// NewLadybugSource opens (or creates) the database at path and ensures the
// schema exists. Use ":memory:" for a throwaway database.
func NewLadybugSource(path string, logger *slog.Logger) (*LadybugSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	systemConfig := ladybug.SystemConfig{
		BufferPoolSize:    256 * 1024 * 1024,
		MaxNumThreads:     1,
		EnableCompression: true,
		ReadOnly:          false,
		MaxDbSize:         1 << 43,
	}
	db, err := ladybug.OpenDatabase(path, systemConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open ladybug database %s: %w", path, err)
	}
	conn, err := ladybug.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open ladybug connection: %w", err)
	}

	result, err := conn.Query(LadybugSchema)
	if err != nil {
		conn.Close()
		db.Close()
		return nil, fmt.Errorf("failed to create ladybug schema: %w", err)
	}
	result.Close()

	return &LadybugSource{db: db, conn: conn, logger: logger}, nil
}

// query runs a statement and returns every row as a slice of column values.
func (s *LadybugSource) query(cypher string, params map[string]any) ([][]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		results *ladybug.QueryResult
		err     error
	)
	if len(params) > 0 {
		stmt, perr := s.conn.Prepare(cypher)
		if perr != nil {
			return nil, fmt.Errorf("failed to prepare query: %w", perr)
		}
		results, err = s.conn.Execute(stmt, params)
	} else {
		results, err = s.conn.Query(cypher)
	}
	if err != nil {
		return nil, err
	}
	defer results.Close()

	var rows [][]any
	for results.HasNext() {
		row, err := results.Next()
		if err != nil {
			return nil, err
		}
		values, err := row.GetAsSlice()
		if err != nil {
			return nil, err
		}
		rows = append(rows, values)
	}
	return rows, nil
}

// AddEntity upserts an entity and its display name.
func (s *LadybugSource) AddEntity(ctx context.Context, id types.EntityID, name string) error {
	_, err := s.query(`MERGE (e:Entity {id: $id}) SET e.name = $name`, map[string]any{
		"id":   string(id),
		"name": name,
	})
	return err
}

// AddTriplet creates both endpoints if needed and links them.
func (s *LadybugSource) AddTriplet(ctx context.Context, t types.Triplet) error {
	if err := t.Validate(); err != nil {
		return err
	}
	for _, id := range []types.EntityID{t.Head, t.Tail} {
		if _, err := s.query(`MERGE (e:Entity {id: $id})`, map[string]any{"id": string(id)}); err != nil {
			return err
		}
	}
	_, err := s.query(`
		MATCH (h:Entity {id: $head}), (t:Entity {id: $tail})
		CREATE (h)-[:RELATES_TO {name: $relation}]->(t)`,
		map[string]any{"head": string(t.Head), "tail": string(t.Tail), "relation": string(t.Relation)})
	return err
}

func (s *LadybugSource) Count(ctx context.Context) (int, error) {
	rows, err := s.query(`MATCH (:Entity)-[r:RELATES_TO]->(:Entity) RETURN count(r) AS count`, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count triplets: %w", err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return intValue(rows[0][0], "count")
}

func (s *LadybugSource) Batch(ctx context.Context, offset, limit int) ([]types.Triplet, error) {
	// SKIP and LIMIT take literals here; both are ints so formatting is safe.
	rows, err := s.query(fmt.Sprintf(`
		MATCH (h:Entity)-[r:RELATES_TO]->(t:Entity)
		RETURN h.id, r.name, t.id
		ORDER BY h.id, r.name, t.id
		SKIP %d LIMIT %d`, offset, limit), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch triplets at offset %d: %w", offset, err)
	}
	out := make([]types.Triplet, 0, len(rows))
	for _, row := range rows {
		if len(row) < 3 {
			return nil, fmt.Errorf("unexpected row width %d", len(row))
		}
		head, err := entityIDValue(row[0], "head")
		if err != nil {
			return nil, err
		}
		rel, err := stringValue(row[1], "relation")
		if err != nil {
			return nil, err
		}
		tail, err := entityIDValue(row[2], "tail")
		if err != nil {
			return nil, err
		}
		out = append(out, types.Triplet{Head: head, Relation: types.RelationID(rel), Tail: tail})
	}
	s.logger.Debug("Fetched triplet batch", "offset", offset, "limit", limit, "count", len(out))
	return out, nil
}

func (s *LadybugSource) EntityIDs(ctx context.Context) ([]types.EntityID, error) {
	rows, err := s.query(`MATCH (e:Entity) RETURN e.id ORDER BY e.id`, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entities: %w", err)
	}
	out := make([]types.EntityID, 0, len(rows))
	for _, row := range rows {
		id, err := entityIDValue(row[0], "id")
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *LadybugSource) RelationIDs(ctx context.Context) ([]types.RelationID, error) {
	rows, err := s.query(`MATCH ()-[r:RELATES_TO]->() RETURN DISTINCT r.name AS name ORDER BY name`, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch relations: %w", err)
	}
	out := make([]types.RelationID, 0, len(rows))
	for _, row := range rows {
		rel, err := stringValue(row[0], "name")
		if err != nil {
			return nil, err
		}
		out = append(out, types.RelationID(rel))
	}
	return out, nil
}

func (s *LadybugSource) EntityName(ctx context.Context, id types.EntityID) (string, error) {
	rows, err := s.query(`MATCH (e:Entity {id: $id}) RETURN e.name`, map[string]any{"id": string(id)})
	if err != nil {
		return "", fmt.Errorf("failed to fetch entity name: %w", err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return "", nil
	}
	name, _ := rows[0][0].(string)
	return name, nil
}

func (s *LadybugSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	return nil
}
