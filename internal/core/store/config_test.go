package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/protostore/internal/core/models"
)

func TestConfig_LoadJSONAndYAML(t *testing.T) {
	fromJSON, err := LoadJSON(strings.NewReader(`{"dir":"/var/lib/entities","strict":true,"preload_on_open":true}`))
	require.NoError(t, err)

	fromYAML, err := LoadYAML(strings.NewReader("dir: /var/lib/entities\nstrict: true\npreload_on_open: true\n"))
	require.NoError(t, err)

	assert.Equal(t, fromJSON, fromYAML)
	assert.Equal(t, "/var/lib/entities", fromJSON.Dir)
	assert.True(t, fromJSON.Strict)
	assert.True(t, fromJSON.PreloadOnOpen)
}

func TestOpen_RoundTripsThroughDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open[*models.Entity](ctx, Config{Dir: dir, Strict: true}, nil)
	require.NoError(t, err)

	goblin := &models.Entity{
		ID:   "goblin",
		Name: "Goblin",
		Components: models.ComponentList{
			&models.Health{Current: 30, Max: 30},
		},
	}
	require.NoError(t, s.Save(ctx, goblin))

	// A second store over the same directory sees the entity after preload,
	// without any lazy fetching.
	reopened, err := Open[*models.Entity](ctx, Config{Dir: dir, Strict: true, PreloadOnOpen: true}, nil)
	require.NoError(t, err)

	got, err := reopened.LoadCached(ctx, "goblin")
	require.NoError(t, err)
	assert.Equal(t, goblin, got)
}
