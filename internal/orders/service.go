package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/coraldesk/coraldesk-backend/internal/corals"
	"github.com/coraldesk/coraldesk-backend/internal/notifications"
	"github.com/coraldesk/coraldesk-backend/pkg/db"
	"github.com/coraldesk/coraldesk-backend/pkg/db/models"
	"github.com/coraldesk/coraldesk-backend/pkg/enums"
	pkgerrors "github.com/coraldesk/coraldesk-backend/pkg/errors"
	"github.com/coraldesk/coraldesk-backend/pkg/logger"
)

// priceTolerance is the maximum allowed deviation between a submitted unit
// price and the server-side computation.
var priceTolerance = decimal.NewFromFloat(0.01)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type enqueuer interface {
	Enqueue(ctx context.Context, payload notifications.Payload, opts notifications.EnqueueOptions) (*models.NotificationJob, error)
}

// Service defines the order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, id int64) (*models.Order, error)
	List(ctx context.Context, params ListParams) (*OrderList, error)
	UpdateStatus(ctx context.Context, id int64, target enums.OrderStatus) (*models.Order, error)
	Cancel(ctx context.Context, id int64) (*models.Order, error)
	MarkPaid(ctx context.Context, id int64) error
	SetInvoiceRef(ctx context.Context, id int64, ref string) error
	Delete(ctx context.Context, id int64) error
	Archive(ctx context.Context, id int64) (*models.Order, error)
}

type service struct {
	repo  Repository
	tx    txRunner
	queue enqueuer
	logg  *logger.Logger
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, queue enqueuer, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if queue == nil {
		return nil, fmt.Errorf("notification queue required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, queue: queue, logg: logg}, nil
}

// Create validates live stock and client pricing, then inserts the order,
// its items, and every stock decrement in one transaction. Notification
// enqueues happen after commit and never fail the request.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.ClientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client id required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
	}

	var (
		order  *models.Order
		client *models.Client
		alerts []lowStockAlert
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		client, err = repo.FindClient(ctx, input.ClientID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "client not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load client")
		}

		coralIDs := make([]uuid.UUID, 0, len(input.Items))
		for _, item := range input.Items {
			coralIDs = append(coralIDs, item.CoralID)
		}
		stock, err := repo.FindCorals(ctx, coralIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load corals")
		}
		coralsByID := make(map[uuid.UUID]models.Coral, len(stock))
		for _, coral := range stock {
			coralsByID[coral.ID] = coral
		}

		items := make([]models.OrderItem, 0, len(input.Items))
		total := decimal.Zero
		for _, item := range input.Items {
			coral, ok := coralsByID[item.CoralID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("coral %s not found", item.CoralID))
			}
			if coral.Quantity < item.Quantity {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("insufficient stock for %s", coral.Name)).
					WithDetails(map[string]any{"coral_id": coral.ID, "available": coral.Quantity, "requested": item.Quantity})
			}

			unit := discountedPrice(coral.Price, client.DiscountRate)
			if item.ExpectedUnitPrice.Sub(unit).Abs().GreaterThan(priceTolerance) {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("price mismatch for %s", coral.Name)).
					WithDetails(map[string]any{"coral_id": coral.ID, "expected": unit.StringFixed(2)})
			}

			subtotal := unit.Mul(decimal.NewFromInt(int64(item.Quantity)))
			items = append(items, models.OrderItem{
				ID:           uuid.New(),
				CoralID:      coral.ID,
				CoralName:    coral.Name,
				Quantity:     item.Quantity,
				PriceAtOrder: unit,
				Subtotal:     subtotal,
			})
			total = total.Add(subtotal)
		}

		clientID := client.ID
		order = &models.Order{
			ClientID:    &clientID,
			Status:      enums.OrderStatusPending,
			TotalAmount: total,
			Notes:       input.Notes,
			Items:       items,
		}
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		for _, item := range items {
			_, alert, err := s.adjustStock(ctx, repo, item.CoralID, -item.Quantity)
			if err != nil {
				return err
			}
			if alert != nil {
				alerts = append(alerts, *alert)
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}

	s.enqueueOrderConfirmation(ctx, order, client)
	s.enqueueLowStockAlerts(ctx, alerts)
	return order, nil
}

func (s *service) Get(ctx context.Context, id int64) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*OrderList, error) {
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 25
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	orders, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return &OrderList{Orders: orders, Total: total}, nil
}

// UpdateStatus applies one guarded forward transition. Cancellation goes
// through Cancel so its stock restoration shares the status flip transaction.
func (s *service) UpdateStatus(ctx context.Context, id int64, target enums.OrderStatus) (*models.Order, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", target))
	}
	if target == enums.OrderStatusCancelled {
		return s.Cancel(ctx, id)
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		order, err = repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := guardMutable(order); err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move order from %s to %s", order.Status, target))
		}

		if err := repo.Update(ctx, order.ID, map[string]any{"status": target}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = target
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}

	s.enqueueStatusUpdate(ctx, order)
	return order, nil
}

// Cancel flips the order to cancelled and restores every line item's stock
// inside the same transaction.
func (s *service) Cancel(ctx context.Context, id int64) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		order, err = repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := guardMutable(order); err != nil {
			return err
		}
		if !order.Status.CanCancel() {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot cancel order in status %s", order.Status))
		}

		if err := s.restoreStock(ctx, repo, order.Items); err != nil {
			return err
		}
		updates := map[string]any{
			"status":         enums.OrderStatusCancelled,
			"stock_restored": true,
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		order.Status = enums.OrderStatusCancelled
		order.StockRestored = true
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}

	s.enqueueStatusUpdate(ctx, order)
	return order, nil
}

// MarkPaid records payment receipt. Archived orders are immutable.
func (s *service) MarkPaid(ctx context.Context, id int64) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Archived {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is archived")
		}
		if order.Paid {
			return nil
		}
		if err := repo.Update(ctx, order.ID, map[string]any{"paid": true}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		return nil
	})
	return mapStoreErr(err)
}

// SetInvoiceRef stores the external accounting reference returned by the
// invoicing provider.
func (s *service) SetInvoiceRef(ctx context.Context, id int64, ref string) error {
	if ref == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice reference required")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.InvoiceRef != nil && *order.InvoiceRef != ref {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already invoiced")
		}
		if err := repo.Update(ctx, order.ID, map[string]any{"invoice_ref": ref}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store invoice reference")
		}
		return nil
	})
	return mapStoreErr(err)
}

// Delete removes a terminal order. A cancelled order restores its stock first
// unless a prior cancellation already did.
func (s *service) Delete(ctx context.Context, id int64) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot delete order in status %s", order.Status))
		}

		if order.Status == enums.OrderStatusCancelled && !order.StockRestored {
			if err := s.restoreStock(ctx, repo, order.Items); err != nil {
				return err
			}
		}

		if err := repo.DeleteItems(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order items")
		}
		if err := repo.Delete(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
		}
		return nil
	})
	return mapStoreErr(err)
}

// Archive freezes a completed, paid order: client and item data become JSON
// snapshots, the client foreign key is severed, and live item rows are
// removed. There is no unarchive.
func (s *service) Archive(ctx context.Context, id int64) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		order, err = repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Archived {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already archived")
		}
		if order.Status != enums.OrderStatusCompleted || !order.Paid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only completed, paid orders can be archived")
		}
		if order.Client == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order has no client to snapshot")
		}

		clientData, itemsData, err := buildArchiveSnapshots(order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode archive snapshots")
		}

		updates := map[string]any{
			"archived":             true,
			"archived_at":          gorm.Expr("CURRENT_TIMESTAMP"),
			"client_id":            nil,
			"archived_client_data": clientData,
			"archived_items_data":  itemsData,
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "archive order")
		}
		if err := repo.DeleteItems(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete archived items")
		}

		order.Archived = true
		order.ClientID = nil
		order.Client = nil
		order.Items = nil
		order.ArchivedClientData = clientData
		order.ArchivedItemsData = itemsData
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return order, nil
}

// adjustStock applies a delta and recomputes the derived status. It returns a
// low-stock alert when a decrement lands at or below the minimum threshold.
func (s *service) adjustStock(ctx context.Context, repo Repository, coralID uuid.UUID, delta int) (*models.Coral, *lowStockAlert, error) {
	applied, err := repo.AdjustCoralStock(ctx, coralID, delta)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust coral stock")
	}
	if !applied {
		return nil, nil, pkgerrors.New(pkgerrors.CodeConflict, "stock changed concurrently, retry")
	}

	coral, err := repo.FindCoral(ctx, coralID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload coral")
	}
	status := corals.ComputeStatus(coral.Quantity, coral.MinimumStock)
	if status != coral.Status {
		if err := repo.UpdateCoralStatus(ctx, coral.ID, status); err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update coral status")
		}
		coral.Status = status
	}

	var alert *lowStockAlert
	if delta < 0 && coral.Quantity <= coral.MinimumStock {
		alert = &lowStockAlert{
			CoralID:      coral.ID,
			CoralName:    coral.Name,
			Quantity:     coral.Quantity,
			MinimumStock: coral.MinimumStock,
		}
	}
	return coral, alert, nil
}

func (s *service) restoreStock(ctx context.Context, repo Repository, items []models.OrderItem) error {
	for _, item := range items {
		if _, _, err := s.adjustStock(ctx, repo, item.CoralID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) enqueueOrderConfirmation(ctx context.Context, order *models.Order, client *models.Client) {
	items := make([]notifications.OrderItemBrief, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, notifications.OrderItemBrief{
			CoralName: item.CoralName,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal.StringFixed(2),
		})
	}
	payload := notifications.OrderConfirmationPayload{
		OrderID:     order.ID,
		ClientEmail: client.Email,
		ClientName:  client.Name,
		ClientPhone: client.Phone,
		TotalAmount: order.TotalAmount.StringFixed(2),
		Items:       items,
	}
	if _, err := s.queue.Enqueue(ctx, payload, notifications.EnqueueOptions{}); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "order_id", order.ID), "order confirmation enqueue failed")
	}
}

func (s *service) enqueueStatusUpdate(ctx context.Context, order *models.Order) {
	if order.Client == nil {
		return
	}
	payload := notifications.StatusUpdatePayload{
		OrderID:     order.ID,
		ClientEmail: order.Client.Email,
		ClientName:  order.Client.Name,
		ClientPhone: order.Client.Phone,
		Status:      string(order.Status),
	}
	if _, err := s.queue.Enqueue(ctx, payload, notifications.EnqueueOptions{}); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "order_id", order.ID), "status update enqueue failed")
	}
}

func (s *service) enqueueLowStockAlerts(ctx context.Context, alerts []lowStockAlert) {
	for _, alert := range alerts {
		payload := notifications.LowStockPayload{
			CoralID:      alert.CoralID,
			CoralName:    alert.CoralName,
			Quantity:     alert.Quantity,
			MinimumStock: alert.MinimumStock,
		}
		if _, err := s.queue.Enqueue(ctx, payload, notifications.EnqueueOptions{}); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "coral_id", alert.CoralID), "low stock enqueue failed")
		}
	}
}

// guardMutable rejects writes to archived and terminal cancelled orders.
func guardMutable(order *models.Order) error {
	if order.Archived {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is archived")
	}
	if order.Status == enums.OrderStatusCancelled {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is cancelled")
	}
	return nil
}

// discountedPrice applies the client's fractional discount to a list price,
// rounded to cents.
func discountedPrice(price, discountRate decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(1).Sub(discountRate)).Round(2)
}

func buildArchiveSnapshots(order *models.Order) (json.RawMessage, json.RawMessage, error) {
	clientSnap := ArchivedClientSnapshot{
		ID:           order.Client.ID,
		Email:        order.Client.Email,
		Name:         order.Client.Name,
		Phone:        order.Client.Phone,
		DiscountRate: order.Client.DiscountRate,
	}
	clientData, err := json.Marshal(clientSnap)
	if err != nil {
		return nil, nil, err
	}

	itemSnaps := make([]ArchivedItemSnapshot, 0, len(order.Items))
	for _, item := range order.Items {
		itemSnaps = append(itemSnaps, ArchivedItemSnapshot{
			CoralID:      item.CoralID,
			CoralName:    item.CoralName,
			Quantity:     item.Quantity,
			PriceAtOrder: item.PriceAtOrder,
			Subtotal:     item.Subtotal,
		})
	}
	itemsData, err := json.Marshal(itemSnaps)
	if err != nil {
		return nil, nil, err
	}
	return clientData, itemsData, nil
}

// mapStoreErr classifies transaction-layer failures that are not already
// typed: lock waits and deadlocks become retryable conflicts.
func mapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	if db.IsLockConflict(err) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "storage conflict, retry")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order storage failure")
}
