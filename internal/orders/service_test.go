package orders

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/coraldesk/coraldesk-backend/internal/notifications"
	"github.com/coraldesk/coraldesk-backend/pkg/db/models"
	"github.com/coraldesk/coraldesk-backend/pkg/enums"
	pkgerrors "github.com/coraldesk/coraldesk-backend/pkg/errors"
	"github.com/coraldesk/coraldesk-backend/pkg/logger"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	clients := `
CREATE TABLE IF NOT EXISTS clients (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  name TEXT NOT NULL,
  phone TEXT,
  password_hash TEXT NOT NULL DEFAULT '',
  discount_rate NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	corals := `
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
	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  client_id TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  total_amount NUMERIC NOT NULL,
  paid INTEGER NOT NULL DEFAULT 0,
  archived INTEGER NOT NULL DEFAULT 0,
  stock_restored INTEGER NOT NULL DEFAULT 0,
  archived_client_data TEXT,
  archived_items_data TEXT,
  notes TEXT,
  invoice_ref TEXT,
  archived_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id INTEGER NOT NULL,
  coral_id TEXT NOT NULL,
  coral_name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price_at_order NUMERIC NOT NULL,
  subtotal NUMERIC NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(clients).Error)
	require.NoError(t, db.Exec(corals).Error)
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(orderItems).Error)
	for _, table := range []string{"order_items", "orders", "corals", "clients"} {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}
	return db
}

type gormTx struct {
	db *gorm.DB
}

func (g gormTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type recordingQueue struct {
	payloads []notifications.Payload
	err      error
}

func (r *recordingQueue) Enqueue(ctx context.Context, payload notifications.Payload, opts notifications.EnqueueOptions) (*models.NotificationJob, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.payloads = append(r.payloads, payload)
	return &models.NotificationJob{ID: uuid.New(), Kind: payload.Kind()}, nil
}

func (r *recordingQueue) byKind(kind enums.NotificationKind) []notifications.Payload {
	var matched []notifications.Payload
	for _, p := range r.payloads {
		if p.Kind() == kind {
			matched = append(matched, p)
		}
	}
	return matched
}

func newOrdersService(t *testing.T, db *gorm.DB, queue *recordingQueue) Service {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	svc, err := NewService(NewRepository(db), gormTx{db: db}, queue, logg)
	require.NoError(t, err)
	return svc
}

func newTestClient(t *testing.T, db *gorm.DB, discount string) *models.Client {
	t.Helper()

	client := &models.Client{
		ID:           uuid.New(),
		Email:        "reef@example.com",
		Name:         "Reef Co",
		DiscountRate: decimal.RequireFromString(discount),
	}
	phone := "+15550001111"
	client.Phone = &phone
	require.NoError(t, db.Create(client).Error)
	return client
}

func newTestCoral(t *testing.T, db *gorm.DB, name string, price string, qty, minStock int) *models.Coral {
	t.Helper()

	coral := &models.Coral{
		ID:           uuid.New(),
		Name:         name,
		Price:        decimal.RequireFromString(price),
		Quantity:     qty,
		MinimumStock: minStock,
		Status:       enums.CoralStockStatusAvailable,
	}
	require.NoError(t, db.Create(coral).Error)
	return coral
}

func coralQuantity(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()

	var coral models.Coral
	require.NoError(t, db.Where("id = ?", id).First(&coral).Error)
	return coral.Quantity
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func TestServiceCreate_decrementsStockAndEnqueues(t *testing.T) {
	db := setupOrdersTestDB(t)
	queue := &recordingQueue{}
	svc := newOrdersService(t, db, queue)

	client := newTestClient(t, db, "0.10")
	coral := newTestCoral(t, db, "Acropora millepora", "50.00", 5, 3)

	order, err := svc.Create(context.Background(), CreateOrderInput{
		ClientID: client.ID,
		Items: []CreateOrderItemInput{
			{CoralID: coral.ID, Quantity: 2, ExpectedUnitPrice: decimal.RequireFromString("45.00")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, "90.00", order.TotalAmount.StringFixed(2))
	require.Len(t, order.Items, 1)
	assert.Equal(t, "45.00", order.Items[0].PriceAtOrder.StringFixed(2))

	assert.Equal(t, 3, coralQuantity(t, db, coral.ID))
	var stored models.Coral
	require.NoError(t, db.Where("id = ?", coral.ID).First(&stored).Error)
	assert.Equal(t, enums.CoralStockStatusLowStock, stored.Status)

	require.Len(t, queue.byKind(enums.NotificationKindOrderConfirmation), 1)
	lowStock := queue.byKind(enums.NotificationKindLowStock)
	require.Len(t, lowStock, 1)
	alert := lowStock[0].(notifications.LowStockPayload)
	assert.Equal(t, coral.ID, alert.CoralID)
	assert.Equal(t, 3, alert.Quantity)
}

func TestServiceCreate_rejectsPriceTamper(t *testing.T) {
	db := setupOrdersTestDB(t)
	queue := &recordingQueue{}
	svc := newOrdersService(t, db, queue)

	client := newTestClient(t, db, "0.10")
	coral := newTestCoral(t, db, "Montipora", "50.00", 5, 1)

	_, err := svc.Create(context.Background(), CreateOrderInput{
		ClientID: client.ID,
		Items: []CreateOrderItemInput{
			{CoralID: coral.ID, Quantity: 1, ExpectedUnitPrice: decimal.RequireFromString("44.50")},
		},
	})
	requireCode(t, err, pkgerrors.CodeValidation)
	assert.Equal(t, 5, coralQuantity(t, db, coral.ID))
	assert.Empty(t, queue.payloads)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestServiceCreate_toleratesOneCentDeviation(t *testing.T) {
	db := setupOrdersTestDB(t)
	queue := &recordingQueue{}
	svc := newOrdersService(t, db, queue)

	client := newTestClient(t, db, "0")
	coral := newTestCoral(t, db, "Zoanthus", "20.00", 10, 1)

	_, err := svc.Create(context.Background(), CreateOrderInput{
		ClientID: client.ID,
		Items: []CreateOrderItemInput{
			{CoralID: coral.ID, Quantity: 1, ExpectedUnitPrice: decimal.RequireFromString("20.01")},
		},
	})
	require.NoError(t, err)
}

func TestServiceCreate_rejectsInsufficientStock(t *testing.T) {
	db := setupOrdersTestDB(t)
	queue := &recordingQueue{}
	svc := newOrdersService(t, db, queue)

	client := newTestClient(t, db, "0")
	coral := newTestCoral(t, db, "Euphyllia", "30.00", 1, 0)

	_, err := svc.Create(context.Background(), CreateOrderInput{
		ClientID: client.ID,
		Items: []CreateOrderItemInput{
			{CoralID: coral.ID, Quantity: 2, ExpectedUnitPrice: decimal.RequireFromString("30.00")},
		},
	})
	requireCode(t, err, pkgerrors.CodeValidation)
	assert.Equal(t, 1, coralQuantity(t, db, coral.ID))
}

func TestServiceUpdateStatus_forwardPathAndGuards(t *testing.T) {
	db := setupOrdersTestDB(t)
	queue := &recordingQueue{}
	svc := newOrdersService(t, db, queue)

	client := newTestClient(t, db, "0")
	coral := newTestCoral(t, db, "Acropora", "10.00", 10, 1)

	order, err := svc.Create(context.Background(), CreateOrderInput{
		ClientID: client.ID,
		Items: []CreateOrderItemInput{
			{CoralID: coral.ID, Quantity: 1, ExpectedUnitPrice: decimal.RequireFromString("10.00")},
		},
	})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), order.ID, enums.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, updated.Status)

	statusJobs := queue.byKind(enums.NotificationKindStatusUpdate)
	require.Len(t, statusJobs, 1)
	assert.Equal(t, "confirmed", statusJobs[0].(notifications.StatusUpdatePayload).Status)

	_, err = svc.UpdateStatus(context.Background(), order.ID, enums.OrderStatusCompleted)
	requireCode(t, err, pkgerrors.CodeStateConflict)

	_, err = svc.UpdateStatus(context.Background(), order.ID, "shipped")
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.UpdateStatus(context.Background(), int64(9999), enums.OrderStatusConfirmed)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestServiceCancel_restoresStockIdempotently(t *testing.T) {
	db := setupOrdersTestDB(t)
	queue := &recordingQueue{}
	svc := newOrdersService(t, db, queue)

	client := newTestClient(t, db, "0")
	coral := newTestCoral(t, db, "Acropora", "10.00", 5, 3)

	order, err := svc.Create(context.Background(), CreateOrderInput{
		ClientID: client.ID,
		Items: []CreateOrderItemInput{
			{CoralID: coral.ID, Quantity: 2, ExpectedUnitPrice: decimal.RequireFromString("10.00")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 3, coralQuantity(t, db, coral.ID))

	cancelled, err := svc.Cancel(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	assert.True(t, cancelled.StockRestored)
	assert.Equal(t, 5, coralQuantity(t, db, coral.ID))

	_, err = svc.Cancel(context.Background(), order.ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)

	require.NoError(t, svc.Delete(context.Background(), order.ID))
	assert.Equal(t, 5, coralQuantity(t, db, coral.ID))

	_, err = svc.Get(context.Background(), order.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestServiceDelete_guards(t *testing.T) {
	db := setupOrdersTestDB(t)
	queue := &recordingQueue{}
	svc := newOrdersService(t, db, queue)

	client := newTestClient(t, db, "0")
	coral := newTestCoral(t, db, "Acropora", "10.00", 10, 1)

	order, err := svc.Create(context.Background(), CreateOrderInput{
		ClientID: client.ID,
		Items: []CreateOrderItemInput{
			{CoralID: coral.ID, Quantity: 2, ExpectedUnitPrice: decimal.RequireFromString("10.00")},
		},
	})
	require.NoError(t, err)

	requireCode(t, svc.Delete(context.Background(), order.ID), pkgerrors.CodeStateConflict)

	for _, status := range []enums.OrderStatus{
		enums.OrderStatusConfirmed,
		enums.OrderStatusProcessing,
		enums.OrderStatusReadyForPickup,
		enums.OrderStatusCompleted,
	} {
		_, err = svc.UpdateStatus(context.Background(), order.ID, status)
		require.NoError(t, err)
	}

	require.NoError(t, svc.Delete(context.Background(), order.ID))
	assert.Equal(t, 8, coralQuantity(t, db, coral.ID), "deleting a completed order must not restore stock")
}

func TestServiceArchive(t *testing.T) {
	db := setupOrdersTestDB(t)
	queue := &recordingQueue{}
	svc := newOrdersService(t, db, queue)

	client := newTestClient(t, db, "0.25")
	coral := newTestCoral(t, db, "Acropora", "100.00", 10, 1)

	order, err := svc.Create(context.Background(), CreateOrderInput{
		ClientID: client.ID,
		Items: []CreateOrderItemInput{
			{CoralID: coral.ID, Quantity: 1, ExpectedUnitPrice: decimal.RequireFromString("75.00")},
		},
	})
	require.NoError(t, err)

	_, err = svc.Archive(context.Background(), order.ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)

	for _, status := range []enums.OrderStatus{
		enums.OrderStatusConfirmed,
		enums.OrderStatusProcessing,
		enums.OrderStatusReadyForPickup,
		enums.OrderStatusCompleted,
	} {
		_, err = svc.UpdateStatus(context.Background(), order.ID, status)
		require.NoError(t, err)
	}

	_, err = svc.Archive(context.Background(), order.ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)

	require.NoError(t, svc.MarkPaid(context.Background(), order.ID))

	archived, err := svc.Archive(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, archived.Archived)
	assert.Nil(t, archived.ClientID)

	var clientSnap ArchivedClientSnapshot
	require.NoError(t, json.Unmarshal(archived.ArchivedClientData, &clientSnap))
	assert.Equal(t, client.Email, clientSnap.Email)

	var itemSnaps []ArchivedItemSnapshot
	require.NoError(t, json.Unmarshal(archived.ArchivedItemsData, &itemSnaps))
	require.Len(t, itemSnaps, 1)
	assert.Equal(t, "75", itemSnaps[0].PriceAtOrder.String())

	var itemCount int64
	require.NoError(t, db.Model(&models.OrderItem{}).Where("order_id = ?", order.ID).Count(&itemCount).Error)
	assert.Zero(t, itemCount)

	_, err = svc.Archive(context.Background(), order.ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)

	_, err = svc.UpdateStatus(context.Background(), order.ID, enums.OrderStatusConfirmed)
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestServiceSetInvoiceRef(t *testing.T) {
	db := setupOrdersTestDB(t)
	queue := &recordingQueue{}
	svc := newOrdersService(t, db, queue)

	client := newTestClient(t, db, "0")
	coral := newTestCoral(t, db, "Zoanthid", "20.00", 5, 1)

	order, err := svc.Create(context.Background(), CreateOrderInput{
		ClientID: client.ID,
		Items: []CreateOrderItemInput{
			{CoralID: coral.ID, Quantity: 1, ExpectedUnitPrice: decimal.RequireFromString("20.00")},
		},
	})
	require.NoError(t, err)

	err = svc.SetInvoiceRef(context.Background(), order.ID, "")
	requireCode(t, err, pkgerrors.CodeValidation)

	require.NoError(t, svc.SetInvoiceRef(context.Background(), order.ID, "INV-001"))

	stored, err := svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.InvoiceRef)
	assert.Equal(t, "INV-001", *stored.InvoiceRef)

	// Re-storing the same reference is a no-op, a different one is refused.
	require.NoError(t, svc.SetInvoiceRef(context.Background(), order.ID, "INV-001"))
	err = svc.SetInvoiceRef(context.Background(), order.ID, "INV-002")
	requireCode(t, err, pkgerrors.CodeStateConflict)

	err = svc.SetInvoiceRef(context.Background(), 9999, "INV-003")
	requireCode(t, err, pkgerrors.CodeNotFound)
}
