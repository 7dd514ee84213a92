package mapping_test

import (
	"context"
	"os"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fescue/internal/repositories/mapping"
	"github.com/Ramsey-B/fescue/pkg/database"
	"github.com/Ramsey-B/fescue/pkg/models"
)

func getTestLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// getTestDB connects to the database named by the DB_* variables and applies migrations.
// Tests are skipped when DB_HOST is not set.
func getTestDB(t *testing.T) database.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	host := os.Getenv("DB_HOST")
	if host == "" {
		t.Skip("DB_HOST not set")
	}

	cfg := database.Config{
		Driver:   "postgres",
		Host:     host,
		Port:     envOr("DB_PORT", "5432"),
		UserName: envOr("DB_USER_NAME", "user"),
		Password: envOr("DB_PASSWORD", "password"),
		Name:     envOr("DB_NAME", "fescue"),
		SSLMode:  "disable",
	}

	db, err := database.Connect(context.Background(), cfg, getTestLogger())
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(func() { _ = db.Close() })

	migrations := database.NewMigrationService(getTestLogger(), &database.MigrationConfig{
		MigrationFolderPath: "../../../db/pg",
	})
	require.NoError(t, migrations.MigratePostgres(db, cfg.Name))

	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func createProfile(t *testing.T, db database.DB) string {
	t.Helper()
	id := uuid.New().String()
	_, err := db.ExecContext(context.Background(), "INSERT INTO profiles (id, display_name) VALUES ($1, $2)", id, "Somchai Jaidee")
	require.NoError(t, err)
	return id
}

func strPtr(s string) *string {
	return &s
}

func TestRepository_UpsertIsIdempotent(t *testing.T) {
	db := getTestDB(t)
	ctx := context.Background()
	repo := mapping.NewRepository(db, getTestLogger())
	profileID := createProfile(t, db)
	customerID := "crm-" + uuid.New().String()

	m := &models.IdentityMapping{
		ProfileID:          profileID,
		ExternalCustomerID: customerID,
		StableHashID:       strPtr("hash-" + customerID),
		IsMatched:          true,
		MatchMethod:        "auto_phone",
		MatchConfidence:    0.9,
		MatchReasons:       []string{"exact_phone_match"},
		CustomerSnapshot:   map[string]any{"tier": "gold"},
	}
	require.NoError(t, repo.Upsert(ctx, m))
	require.NotEmpty(t, m.ID)
	storedID := m.ID

	again := *m
	again.ID = ""
	again.MatchConfidence = 1.0
	require.NoError(t, repo.Upsert(ctx, &again))
	assert.Equal(t, storedID, again.ID, "update keeps the existing row id")

	matched, err := repo.GetMatched(ctx, profileID)
	require.NoError(t, err)
	require.NotNil(t, matched)
	assert.Equal(t, storedID, matched.ID)
	assert.Equal(t, customerID, matched.ExternalCustomerID)
	assert.Equal(t, 1.0, matched.MatchConfidence)
	assert.Equal(t, []string{"exact_phone_match"}, matched.MatchReasons)
	assert.Equal(t, models.MappingGenerationLegacy, matched.Generation)

	var count int
	require.NoError(t, db.GetContext(ctx, &count, "SELECT COUNT(*) FROM crm_customer_mapping WHERE profile_id = $1", profileID))
	assert.Equal(t, 1, count)
}

func TestRepository_DemoteAndFind(t *testing.T) {
	db := getTestDB(t)
	ctx := context.Background()
	repo := mapping.NewRepository(db, getTestLogger())
	profileID := createProfile(t, db)
	otherProfileID := createProfile(t, db)
	first := "crm-" + uuid.New().String()
	second := "crm-" + uuid.New().String()

	require.NoError(t, repo.Upsert(ctx, &models.IdentityMapping{ProfileID: profileID, ExternalCustomerID: first, IsMatched: true, MatchMethod: "auto_phone"}))
	require.NoError(t, repo.Upsert(ctx, &models.IdentityMapping{ProfileID: profileID, ExternalCustomerID: second, IsMatched: true, MatchMethod: "auto_email"}))
	require.NoError(t, repo.DemoteOthers(ctx, profileID, second))

	matched, err := repo.GetMatched(ctx, profileID)
	require.NoError(t, err)
	require.NotNil(t, matched)
	assert.Equal(t, second, matched.ExternalCustomerID)

	holder, err := repo.FindMatchedProfile(ctx, second, "", otherProfileID)
	require.NoError(t, err)
	assert.Equal(t, profileID, holder)

	holder, err = repo.FindMatchedProfile(ctx, first, "", otherProfileID)
	require.NoError(t, err)
	assert.Empty(t, holder)
}

func TestRepository_GetMatchedMissing(t *testing.T) {
	db := getTestDB(t)
	repo := mapping.NewRepository(db, getTestLogger())

	matched, err := repo.GetMatched(context.Background(), uuid.New().String())
	require.NoError(t, err)
	assert.Nil(t, matched)
}

func TestRepository_NonUUIDProfileID(t *testing.T) {
	db := getTestDB(t)
	ctx := context.Background()
	repo := mapping.NewRepository(db, getTestLogger())

	missing, err := repo.GetMatched(ctx, "auth0|"+uuid.New().String())
	require.NoError(t, err)
	assert.Nil(t, missing)

	profileID := "auth0|" + uuid.New().String()
	_, err = db.ExecContext(ctx, "INSERT INTO profiles (id, display_name) VALUES ($1, $2)", profileID, "Napat Srisuk")
	require.NoError(t, err)

	customerID := "crm-" + uuid.New().String()
	require.NoError(t, repo.Upsert(ctx, &models.IdentityMapping{ProfileID: profileID, ExternalCustomerID: customerID, IsMatched: true, MatchMethod: "auto_phone"}))

	matched, err := repo.GetMatched(ctx, profileID)
	require.NoError(t, err)
	require.NotNil(t, matched)
	assert.Equal(t, customerID, matched.ExternalCustomerID)
}
