// Package attributes defines the key/value attribute contract shared by
// contacts and conversations.
package attributes

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
)

// Store reads and writes attribute maps. Set has merge semantics: each key in
// the supplied map overwrites the stored value, other keys are left alone.
// There are no transactions; concurrent writers are last-write-wins per key.
type Store interface {
	GetContactAttributes(ctx context.Context, contactID string) (Map, error)
	SetContactAttributes(ctx context.Context, contactID string, attrs Map) error
	GetConversationAttributes(ctx context.Context, conversationID string) (Map, error)
	SetConversationAttributes(ctx context.Context, conversationID string, attrs Map) error
}

// Map is an opaque attribute map. Missing keys read as falsy.
type Map map[string]any

// String returns the value of key as a string
func (m Map) String(key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// Bool reports whether key holds a truthy value
func (m Map) Bool(key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "ja":
			return true
		}
		return false
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	}
	return false
}

// Has reports whether key is set to a non-empty value
func (m Map) Has(key string) bool {
	v, ok := m[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// Strings returns the value of key as a string slice
func (m Map) Strings(key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Clone returns a shallow copy of m
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
