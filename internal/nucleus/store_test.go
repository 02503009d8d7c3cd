package nucleus

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLeaves(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveLeaves("com.example.A", []Leaf{
		{Path: []string{"net", "port"}, Value: int64(8883), Timestamp: 2},
		{Path: []string{"ratio"}, Value: 0.5, Timestamp: 1},
	}))
	require.NoError(t, store.SaveLeaves("com.example.A", []Leaf{
		{Path: []string{"net", "port"}, Value: int64(443), Timestamp: 3},
	}))

	leaves, err := store.Leaves()
	require.NoError(t, err)
	require.Len(t, leaves, 2)
	assert.Equal(t, ComponentLeaf{Component: "com.example.A", Leaf: Leaf{Path: []string{"ratio"}, Value: 0.5, Timestamp: 1}}, leaves[0])
	assert.Equal(t, ComponentLeaf{Component: "com.example.A", Leaf: Leaf{Path: []string{"net", "port"}, Value: int64(443), Timestamp: 3}}, leaves[1])
}

func TestStoreState(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "nucleus.db"))
	require.NoError(t, err)
	defer store.Close()

	state, _, err := store.State("com.example.A")
	require.NoError(t, err)
	assert.Empty(t, state)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.SaveState("com.example.A", "RUNNING", at))
	require.NoError(t, store.SaveState("com.example.A", "ERRORED", at.Add(time.Minute)))

	state, got, err := store.State("com.example.A")
	require.NoError(t, err)
	assert.Equal(t, "ERRORED", state)
	assert.True(t, got.Equal(at.Add(time.Minute)))
}

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig([]byte(`
components:
  com.example.A:
    token: tok
    configuration:
      net:
        port: 8883
system:
  thingName: dev
denyTopics: ["secret/#"]
`))
	require.NoError(t, err)
	assert.Equal(t, "tok", c.Components["com.example.A"].Token)
	assert.Equal(t, map[string]any{"port": 8883}, c.Components["com.example.A"].Configuration["net"])
	assert.Equal(t, "dev", c.System["thingName"])

	_, err = ParseConfig([]byte("denyTopics: [\"a/#/b\"]"))
	assert.Error(t, err)
}
