package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/coraldesk/coraldesk-backend/api/responses"
	invoicesvc "github.com/coraldesk/coraldesk-backend/internal/invoicing"
	ordersvc "github.com/coraldesk/coraldesk-backend/internal/orders"
	pkgerrors "github.com/coraldesk/coraldesk-backend/pkg/errors"
	"github.com/coraldesk/coraldesk-backend/pkg/logger"
)

func AccountingConnect(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := uuid.NewString()
		responses.WriteSuccess(w, map[string]string{
			"auth_url": svc.AuthURL(state),
			"state":    state,
		})
	}
}

func AccountingCallback(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "authorization code required"))
			return
		}
		if err := svc.Exchange(r.Context(), code); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "connected"})
	}
}

func AccountingStatus(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connected, err := svc.Connected(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"connected": connected})
	}
}

func AccountingDisconnect(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Disconnect(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "disconnected"})
	}
}

// OrderInvoice pushes an order to the accounting provider and stores the
// returned invoice reference on the order.
func OrderInvoice(invoices invoicesvc.Service, orders ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parsePathInt(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := orders.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if order.InvoiceRef != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeStateConflict, "order already invoiced"))
			return
		}

		ref, err := invoices.CreateInvoice(r.Context(), order)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := orders.SetInvoiceRef(r.Context(), id, ref); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"invoice_ref": ref})
	}
}
