package corpus

import (
	"fmt"
	"strconv"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/soundprediction/kgembed/pkg/types"
)

// TypeConversionError represents an error during type conversion from database types.
type TypeConversionError struct {
	Expected string
	Actual   string
	Field    string
}

func (e *TypeConversionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("type conversion error for field %q: expected %s, got %s", e.Field, e.Expected, e.Actual)
	}
	return fmt.Sprintf("type conversion error: expected %s, got %s", e.Expected, e.Actual)
}

func newTypeConversionError(expected string, actual any, field string) *TypeConversionError {
	return &TypeConversionError{Expected: expected, Actual: fmt.Sprintf("%T", actual), Field: field}
}

// asRecords converts a transaction result to []*db.Record.
func asRecords(v any) ([]*db.Record, error) {
	if v == nil {
		return nil, nil
	}
	records, ok := v.([]*db.Record)
	if !ok {
		return nil, newTypeConversionError("[]*db.Record", v, "")
	}
	return records, nil
}

// entityIDValue renders a database node id. Graph stores hand out int64
// ids; string keys pass through unchanged.
func entityIDValue(v any, field string) (types.EntityID, error) {
	switch id := v.(type) {
	case int64:
		return types.EntityID(strconv.FormatInt(id, 10)), nil
	case int:
		return types.EntityID(strconv.Itoa(id)), nil
	case string:
		if id == "" {
			return "", fmt.Errorf("field %q: %w", field, types.ErrEmptyID)
		}
		return types.EntityID(id), nil
	default:
		return "", newTypeConversionError("int64 or string", v, field)
	}
}

func stringValue(v any, field string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", newTypeConversionError("string", v, field)
	}
	return s, nil
}

func intValue(v any, field string) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, newTypeConversionError("int64", v, field)
	}
}

// recordTriplet reads head, relation and tail columns from a record.
func recordTriplet(record *db.Record) (types.Triplet, error) {
	values := make(map[string]any, 3)
	for _, key := range []string{"head", "relation", "tail"} {
		v, ok := record.Get(key)
		if !ok {
			return types.Triplet{}, fmt.Errorf("record missing column %q", key)
		}
		values[key] = v
	}
	head, err := entityIDValue(values["head"], "head")
	if err != nil {
		return types.Triplet{}, err
	}
	tail, err := entityIDValue(values["tail"], "tail")
	if err != nil {
		return types.Triplet{}, err
	}
	rel, err := stringValue(values["relation"], "relation")
	if err != nil {
		return types.Triplet{}, err
	}
	return types.Triplet{Head: head, Relation: types.RelationID(rel), Tail: tail}, nil
}
