package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/ecmc/internal/node"
)

// marshalJSON encodes v as compact JSON TEXT without HTML escaping, so
// identical values always produce identical rows.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// marshalIdentifier stores a state identifier as a JSON array such as
// "[3,1]".
func marshalIdentifier(id node.StateID) (string, error) {
	if len(id) == 0 {
		return "", fmt.Errorf("marshal identifier: empty identifier")
	}
	data, err := marshalJSON([]int(id))
	if err != nil {
		return "", fmt.Errorf("marshal identifier: %w", err)
	}
	return data, nil
}

func unmarshalIdentifier(data string) (node.StateID, error) {
	var id []int
	if err := json.Unmarshal([]byte(data), &id); err != nil {
		return nil, fmt.Errorf("unmarshal identifier: %w", err)
	}
	return node.StateID(id), nil
}

// marshalVector stores a position or velocity as a JSON array.
func marshalVector(v []float64) (string, error) {
	data, err := marshalJSON(v)
	if err != nil {
		return "", fmt.Errorf("marshal vector: %w", err)
	}
	return data, nil
}

func unmarshalVector(data string) ([]float64, error) {
	var v []float64
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("unmarshal vector: %w", err)
	}
	return v, nil
}

// marshalVelocity maps an inactive unit to NULL.
func marshalVelocity(v []float64) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := marshalVector(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: data, Valid: true}, nil
}

func unmarshalVelocity(data sql.NullString) ([]float64, error) {
	if !data.Valid {
		return nil, nil
	}
	return unmarshalVector(data.String)
}
