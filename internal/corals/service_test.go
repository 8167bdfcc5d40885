package corals

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/coraldesk/coraldesk-backend/pkg/db/models"
	"github.com/coraldesk/coraldesk-backend/pkg/enums"
	pkgerrors "github.com/coraldesk/coraldesk-backend/pkg/errors"
)

func setupCoralsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
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
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_corals_name_lower ON corals (LOWER(name));`
	require.NoError(t, db.Exec(ddl).Error)
	require.NoError(t, db.Exec("DELETE FROM corals").Error)
	return db
}

type gormTx struct {
	db *gorm.DB
}

func (g gormTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

func newCoralsService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	svc, err := NewService(NewRepository(db), gormTx{db: db})
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

func TestComputeStatus(t *testing.T) {
	assert.Equal(t, enums.CoralStockStatusOutOfStock, ComputeStatus(0, 3))
	assert.Equal(t, enums.CoralStockStatusOutOfStock, ComputeStatus(-1, 0))
	assert.Equal(t, enums.CoralStockStatusLowStock, ComputeStatus(3, 3))
	assert.Equal(t, enums.CoralStockStatusLowStock, ComputeStatus(1, 3))
	assert.Equal(t, enums.CoralStockStatusAvailable, ComputeStatus(4, 3))
	assert.Equal(t, enums.CoralStockStatusAvailable, ComputeStatus(1, 0))
}

func TestServiceCreate_derivesStatusAndChecksName(t *testing.T) {
	db := setupCoralsTestDB(t)
	svc := newCoralsService(t, db)

	coral, err := svc.Create(context.Background(), CreateCoralInput{
		Name:         "Acropora millepora",
		Price:        decimal.RequireFromString("50.00"),
		Quantity:     2,
		MinimumStock: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.CoralStockStatusLowStock, coral.Status)

	_, err = svc.Create(context.Background(), CreateCoralInput{
		Name:  "ACROPORA MILLEPORA",
		Price: decimal.RequireFromString("10.00"),
	})
	requireCode(t, err, pkgerrors.CodeConflict)

	_, err = svc.Create(context.Background(), CreateCoralInput{
		Name:  "  ",
		Price: decimal.RequireFromString("10.00"),
	})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Create(context.Background(), CreateCoralInput{
		Name:  "Negative",
		Price: decimal.RequireFromString("-1.00"),
	})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestServiceUpdate_recomputesStatus(t *testing.T) {
	db := setupCoralsTestDB(t)
	svc := newCoralsService(t, db)

	coral, err := svc.Create(context.Background(), CreateCoralInput{
		Name:         "Montipora",
		Price:        decimal.RequireFromString("30.00"),
		Quantity:     5,
		MinimumStock: 2,
	})
	require.NoError(t, err)
	require.Equal(t, enums.CoralStockStatusAvailable, coral.Status)

	minStock := 5
	updated, err := svc.Update(context.Background(), coral.ID, UpdateCoralInput{MinimumStock: &minStock})
	require.NoError(t, err)
	assert.Equal(t, enums.CoralStockStatusLowStock, updated.Status)

	var stored models.Coral
	require.NoError(t, db.Where("id = ?", coral.ID).First(&stored).Error)
	assert.Equal(t, enums.CoralStockStatusLowStock, stored.Status)
	assert.Equal(t, 5, stored.MinimumStock)
}

func TestServiceUpdate_nameCollision(t *testing.T) {
	db := setupCoralsTestDB(t)
	svc := newCoralsService(t, db)

	_, err := svc.Create(context.Background(), CreateCoralInput{
		Name:  "Zoanthus",
		Price: decimal.RequireFromString("20.00"),
	})
	require.NoError(t, err)
	other, err := svc.Create(context.Background(), CreateCoralInput{
		Name:  "Euphyllia",
		Price: decimal.RequireFromString("25.00"),
	})
	require.NoError(t, err)

	name := "zoanthus"
	_, err = svc.Update(context.Background(), other.ID, UpdateCoralInput{Name: &name})
	requireCode(t, err, pkgerrors.CodeConflict)

	same := "EUPHYLLIA"
	updated, err := svc.Update(context.Background(), other.ID, UpdateCoralInput{Name: &same})
	require.NoError(t, err)
	assert.Equal(t, "EUPHYLLIA", updated.Name)
}

func TestServiceRestock(t *testing.T) {
	db := setupCoralsTestDB(t)
	svc := newCoralsService(t, db)

	coral, err := svc.Create(context.Background(), CreateCoralInput{
		Name:         "Acropora",
		Price:        decimal.RequireFromString("50.00"),
		Quantity:     0,
		MinimumStock: 3,
	})
	require.NoError(t, err)
	require.Equal(t, enums.CoralStockStatusOutOfStock, coral.Status)

	restocked, err := svc.Restock(context.Background(), coral.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, restocked.Quantity)
	assert.Equal(t, enums.CoralStockStatusAvailable, restocked.Status)

	_, err = svc.Restock(context.Background(), coral.ID, 0)
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Restock(context.Background(), uuid.New(), 5)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestServiceDelete(t *testing.T) {
	db := setupCoralsTestDB(t)
	svc := newCoralsService(t, db)

	coral, err := svc.Create(context.Background(), CreateCoralInput{
		Name:  "Goniopora",
		Price: decimal.RequireFromString("40.00"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), coral.ID))
	requireCode(t, svc.Delete(context.Background(), coral.ID), pkgerrors.CodeNotFound)
}
