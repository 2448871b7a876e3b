package attributes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapBool(t *testing.T) {
	m := Map{
		"b":     true,
		"s":     "TRUE",
		"ja":    "ja",
		"no":    "false",
		"num":   float64(1),
		"zero":  float64(0),
		"blank": "",
	}

	tests := []struct {
		key  string
		want bool
	}{
		{"b", true},
		{"s", true},
		{"ja", true},
		{"no", false},
		{"num", true},
		{"zero", false},
		{"blank", false},
		{"missing", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Bool(tt.key))
		})
	}
}

func TestMapStringAndHas(t *testing.T) {
	m := Map{"name": "Maria", "count": float64(3), "empty": " ", "nil": nil}

	assert.Equal(t, "Maria", m.String("name"))
	assert.Equal(t, "3", m.String("count"))
	assert.Equal(t, "", m.String("missing"))
	assert.True(t, m.Has("name"))
	assert.False(t, m.Has("empty"))
	assert.False(t, m.Has("nil"))
}

func TestMapStrings(t *testing.T) {
	m := Map{"a": []any{"x", 1, "y"}, "b": []string{"z"}}
	assert.Equal(t, []string{"x", "y"}, m.Strings("a"))
	assert.Equal(t, []string{"z"}, m.Strings("b"))
	assert.Nil(t, m.Strings("c"))
}

func TestMemoryStoreMerges(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.SetContactAttributes(ctx, "c1", Map{"language": "nl", "segment": "new"}))
	require.NoError(t, store.SetContactAttributes(ctx, "c1", Map{"segment": "existing"}))

	attrs, err := store.GetContactAttributes(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "nl", attrs.String("language"))
	assert.Equal(t, "existing", attrs.String("segment"))

	// returned maps are copies
	attrs["language"] = "en"
	again, err := store.GetContactAttributes(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "nl", again.String("language"))
}

func TestMemoryStoreScopesConversations(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.SetConversationAttributes(ctx, "conv-1", Map{"pending_intent": "action_menu"}))

	other, err := store.GetConversationAttributes(ctx, "conv-2")
	require.NoError(t, err)
	assert.Empty(t, other)

	contact, err := store.GetContactAttributes(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, contact)
}
