package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coraldesk/coraldesk-backend/api/responses"
	"github.com/coraldesk/coraldesk-backend/api/validators"
	coralsvc "github.com/coraldesk/coraldesk-backend/internal/corals"
	"github.com/coraldesk/coraldesk-backend/pkg/enums"
	pkgerrors "github.com/coraldesk/coraldesk-backend/pkg/errors"
	"github.com/coraldesk/coraldesk-backend/pkg/logger"
)

type createCoralRequest struct {
	Name         string  `json:"name" validate:"required"`
	Species      *string `json:"species,omitempty"`
	Description  *string `json:"description,omitempty"`
	Price        string  `json:"price" validate:"required"`
	Quantity     int     `json:"quantity" validate:"min=0"`
	MinimumStock int     `json:"minimum_stock" validate:"min=0"`
	CategoryID   *string `json:"category_id,omitempty" validate:"omitempty,uuid"`
}

type updateCoralRequest struct {
	Name         *string `json:"name,omitempty"`
	Species      *string `json:"species,omitempty"`
	Description  *string `json:"description,omitempty"`
	Price        *string `json:"price,omitempty"`
	MinimumStock *int    `json:"minimum_stock,omitempty" validate:"omitempty,min=0"`
	CategoryID   *string `json:"category_id,omitempty" validate:"omitempty,uuid"`
	ImagePath    *string `json:"image_path,omitempty"`
}

type restockRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

func parsePathUUID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+param)
	}
	return id, nil
}

func parseDecimal(raw, field string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, field+" must be a decimal number")
	}
	return value, nil
}

func parseOptionalUUID(raw *string) (*uuid.UUID, error) {
	if raw == nil {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid uuid")
	}
	return &id, nil
}

func CoralCreate(svc coralsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createCoralRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		price, err := parseDecimal(payload.Price, "price")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		categoryID, err := parseOptionalUUID(payload.CategoryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		coral, err := svc.Create(r.Context(), coralsvc.CreateCoralInput{
			Name:         payload.Name,
			Species:      payload.Species,
			Description:  payload.Description,
			Price:        price,
			Quantity:     payload.Quantity,
			MinimumStock: payload.MinimumStock,
			CategoryID:   categoryID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, coral)
	}
}

func CoralList(svc coralsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 25, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := coralsvc.ListParams{
			Limit:  limit,
			Offset: offset,
			Query:  r.URL.Query().Get("q"),
		}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := enums.ParseCoralStockStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			params.Status = &status
		}
		if raw := r.URL.Query().Get("category_id"); raw != "" {
			categoryID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category filter"))
				return
			}
			params.CategoryID = &categoryID
		}

		list, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func CoralDetail(svc coralsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parsePathUUID(r, "coralId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		coral, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, coral)
	}
}

func CoralUpdate(svc coralsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parsePathUUID(r, "coralId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateCoralRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := coralsvc.UpdateCoralInput{
			Name:         payload.Name,
			Species:      payload.Species,
			Description:  payload.Description,
			MinimumStock: payload.MinimumStock,
			ImagePath:    payload.ImagePath,
		}
		if payload.Price != nil {
			price, err := parseDecimal(*payload.Price, "price")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Price = &price
		}
		if payload.CategoryID != nil {
			categoryID, err := parseOptionalUUID(payload.CategoryID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.CategoryID = categoryID
		}

		coral, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, coral)
	}
}

func CoralRestock(svc coralsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parsePathUUID(r, "coralId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload restockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		coral, err := svc.Restock(r.Context(), id, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, coral)
	}
}

func CoralDelete(svc coralsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parsePathUUID(r, "coralId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
