package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/creatoros/dmflow/internal/models"
)

// DetectDSNType classifies a DSN string as "postgres" or "sqlite3".
// Anything that is not obviously a PostgreSQL URL or key/value connection
// string is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// marshalJSON encodes v, mapping empty slices and nil to SQL NULL.
func marshalJSON(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case []string:
		if len(val) == 0 {
			return nil, nil
		}
	case []models.ConversationTurn:
		if len(val) == 0 {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: marshal failed: %w", err)
	}
	return string(data), nil
}

// unmarshalJSON decodes a nullable JSON column into target; NULL is a no-op.
func unmarshalJSON(data []byte, target interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("store: unmarshal failed: %w", err)
	}
	return nil
}

// nilIfEmpty returns nil for empty strings, for nullable columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
