package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLatestVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000001_create_profiles.up.sql",
		"000001_create_profiles.down.sql",
		"000003_create_links.up.sql",
		"000002_create_mapping.up.sql",
		"README.md",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}

	latest, err := getLatestVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, latest)
}

func TestGetLatestVersion_Empty(t *testing.T) {
	_, err := getLatestVersion(t.TempDir())
	assert.Error(t, err)
}

func TestExcluded(t *testing.T) {
	ib := NewInsertBuilder()
	ib.InsertInto("crm_customer_mapping").Cols("profile_id", "crm_customer_id", "is_matched").Values("p1", "c1", true)
	ub := ib.OnConflict("profile_id", "crm_customer_id")
	ub.Set(ub.Assign("is_matched", Excluded("is_matched")))

	query, args := ib.Build()
	assert.Contains(t, query, "ON CONFLICT (profile_id, crm_customer_id) DO UPDATE")
	assert.Contains(t, query, "is_matched = EXCLUDED.is_matched")
	assert.Equal(t, []any{"p1", "c1", true}, args)
}
