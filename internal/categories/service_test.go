package categories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/coraldesk/coraldesk-backend/pkg/db/models"
	pkgerrors "github.com/coraldesk/coraldesk-backend/pkg/errors"
)

func setupCategoriesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS categories (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  directory_name TEXT NOT NULL UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS corals (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  species TEXT,
  description TEXT,
  price NUMERIC NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 0,
  minimum_stock INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'out_of_stock',
  category_id TEXT,
  image_path TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	require.NoError(t, db.Exec("DELETE FROM corals").Error)
	require.NoError(t, db.Exec("DELETE FROM categories").Error)
	return db
}

func newCategoriesService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	return svc
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func TestSanitizeDirectoryName(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercases", in: "Euphyllia", want: "euphyllia"},
		{name: "spaces become underscores", in: "Soft Corals", want: "soft_corals"},
		{name: "strips unsafe runes", in: "Acro's & Friends!", want: "acros__friends"},
		{name: "trims leading trailing separators", in: "  --zoas--  ", want: "zoas"},
		{name: "keeps digits and dashes", in: "SPS-2024", want: "sps-2024"},
		{name: "path separators removed", in: "../etc/passwd", want: "etcpasswd"},
		{name: "empty falls back", in: "!!!", want: "uncategorized"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeDirectoryName(tc.in))
		})
	}
}

func TestCategoryCreateDerivesDirectory(t *testing.T) {
	db := setupCategoriesTestDB(t)
	svc := newCategoriesService(t, db)
	ctx := context.Background()

	category, err := svc.Create(ctx, "Soft Corals")
	require.NoError(t, err)
	assert.Equal(t, "Soft Corals", category.Name)
	assert.Equal(t, "soft_corals", category.DirectoryName)

	got, err := svc.Get(ctx, category.ID)
	require.NoError(t, err)
	assert.Equal(t, "soft_corals", got.DirectoryName)
}

func TestCategoryCreateRejectsDirectoryCollision(t *testing.T) {
	db := setupCategoriesTestDB(t)
	svc := newCategoriesService(t, db)
	ctx := context.Background()

	_, err := svc.Create(ctx, "Soft Corals")
	require.NoError(t, err)

	// Different display name, same sanitized directory.
	_, err = svc.Create(ctx, "soft corals")
	requireCode(t, err, pkgerrors.CodeConflict)

	_, err = svc.Create(ctx, "   ")
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestCategoryRenameKeepsDirectory(t *testing.T) {
	db := setupCategoriesTestDB(t)
	svc := newCategoriesService(t, db)
	ctx := context.Background()

	category, err := svc.Create(ctx, "LPS")
	require.NoError(t, err)

	renamed, err := svc.Rename(ctx, category.ID, "Large Polyp Stony")
	require.NoError(t, err)
	assert.Equal(t, "Large Polyp Stony", renamed.Name)
	assert.Equal(t, "lps", renamed.DirectoryName)

	_, err = svc.Rename(ctx, uuid.New(), "Ghost")
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestCategoryDeleteGuardedByCorals(t *testing.T) {
	db := setupCategoriesTestDB(t)
	svc := newCategoriesService(t, db)
	ctx := context.Background()

	category, err := svc.Create(ctx, "Zoanthids")
	require.NoError(t, err)

	coral := models.Coral{
		ID:         uuid.New(),
		Name:       "Rasta Zoa",
		Quantity:   3,
		CategoryID: &category.ID,
	}
	require.NoError(t, db.Create(&coral).Error)

	err = svc.Delete(ctx, category.ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)

	require.NoError(t, db.Delete(&coral).Error)
	require.NoError(t, svc.Delete(ctx, category.ID))

	_, err = svc.Get(ctx, category.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}
