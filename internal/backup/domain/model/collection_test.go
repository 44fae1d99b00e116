package model

import (
	"testing"

	"transit-console/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCollections_Registry(t *testing.T) {
	reg := DefaultCollections()

	conductors, ok := reg.Lookup("conductors")
	require.True(t, ok)
	assert.Equal(t, CollectionKindConductorForest, conductors.Kind)
	assert.Equal(t, "conductors", conductors.Path)

	admins, ok := reg.Lookup("adminUsers")
	require.True(t, ok)
	assert.Equal(t, "admin_users", admins.Path)
	assert.Equal(t, CollectionKindFlat, admins.Kind)

	assert.Equal(t, []string{"conductors", "adminUsers", "activityLogs", "routes", "fareMatrix", "busCompanies", "devices"}, reg.Keys())
}

func TestCollectionRegistry_Resolve(t *testing.T) {
	reg := DefaultCollections()

	t.Run("keeps caller order and drops repeats", func(t *testing.T) {
		cols, err := reg.Resolve([]string{"routes", "conductors", "routes"})
		require.NoError(t, err)
		require.Len(t, cols, 2)
		assert.Equal(t, "routes", cols[0].Key)
		assert.Equal(t, "conductors", cols[1].Key)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := reg.Resolve([]string{"routes", "buses"})
		assert.ErrorIs(t, err, errors.ErrUnknownCollection)
		assert.Contains(t, err.Error(), "buses")
	})

	t.Run("empty selection", func(t *testing.T) {
		_, err := reg.Resolve(nil)
		assert.ErrorIs(t, err, errors.ErrNoCollectionsChosen)
	})
}

func TestNewCollectionRegistry_DefaultsKindToFlat(t *testing.T) {
	reg := NewCollectionRegistry(
		LogicalCollection{Key: "a", Path: "a"},
		LogicalCollection{Key: "a", Path: "other"},
	)
	all := reg.All()
	require.Len(t, all, 1)
	assert.Equal(t, "a", all[0].Path)
	assert.Equal(t, CollectionKindFlat, all[0].Kind)
}
