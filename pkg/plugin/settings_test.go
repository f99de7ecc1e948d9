package plugin_test

import (
	"encoding/json"
	"testing"

	"github.com/hypertrial/honestroles-sub000/pkg/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreezeSettings_DeepCopy(t *testing.T) {
	src := map[string]any{
		"keywords": []any{"go", "rust"},
		"limits":   map[string]any{"max": 3, "ratio": 0.5},
		"enabled":  true,
		"nothing":  nil,
	}
	s, err := plugin.FreezeSettings(src)
	require.NoError(t, err)

	src["keywords"].([]any)[0] = "changed"
	src["limits"].(map[string]any)["max"] = 99

	assert.Equal(t, []string{"go", "rust"}, s.StringList("keywords"))
	n, ok := s.Get("limits").Get("max").Number()
	assert.True(t, ok)
	assert.Equal(t, 3.0, n)
	assert.True(t, s.Bool("enabled", false))
	assert.True(t, s.Get("nothing").IsNull())
	assert.True(t, s.Has("nothing"))
	assert.Equal(t, []string{"enabled", "keywords", "limits", "nothing"}, s.Keys())

	// Map hands out a fresh copy each time.
	m := s.Map()
	m["enabled"] = false
	assert.True(t, s.Bool("enabled", false))
}

func TestFreezeSettings_Defaults(t *testing.T) {
	s, err := plugin.FreezeSettings(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, "def", s.String("missing", "def"))
	assert.Equal(t, 7, s.Int("missing", 7))
	assert.Equal(t, 1.5, s.Float("missing", 1.5))

	var zero plugin.Settings
	data, err := json.Marshal(zero)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestFreezeSettings_RejectsUnsupported(t *testing.T) {
	_, err := plugin.FreezeSettings(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestFreezeSettings_TypedContainers(t *testing.T) {
	s, err := plugin.FreezeSettings(map[string]any{
		"tables": []map[string]any{{"a": int64(1)}},
		"ids":    []int{1, 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Get("tables").Len())
	n, _ := s.Get("ids").Index(1).Number()
	assert.Equal(t, 2.0, n)
}

func TestSettings_MarshalSortedKeys(t *testing.T) {
	s := plugin.MustSettings(map[string]any{"b": 1, "a": []any{"x"}})
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x"],"b":1}`, string(data))
	assert.True(t, s.Equal(plugin.MustSettings(map[string]any{"a": []string{"x"}, "b": 1.0})))
}
