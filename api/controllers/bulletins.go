package controllers

import (
	"net/http"

	"github.com/coraldesk/coraldesk-backend/api/responses"
	"github.com/coraldesk/coraldesk-backend/api/validators"
	bulletinsvc "github.com/coraldesk/coraldesk-backend/internal/bulletins"
	"github.com/coraldesk/coraldesk-backend/pkg/logger"
)

type createBulletinRequest struct {
	Title string `json:"title" validate:"required,min=1,max=200"`
	Body  string `json:"body" validate:"required"`
}

type updateBulletinRequest struct {
	Title *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Body  *string `json:"body,omitempty" validate:"omitempty,min=1"`
}

func BulletinCreate(svc bulletinsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createBulletinRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bulletin, err := svc.Create(r.Context(), payload.Title, payload.Body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, bulletin)
	}
}

func BulletinList(svc bulletinsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		publishedOnly, err := validators.ParseQueryBool(r, "published")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bulletins, err := svc.List(r.Context(), publishedOnly != nil && *publishedOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bulletins)
	}
}

func BulletinDetail(svc bulletinsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parsePathUUID(r, "bulletinId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bulletin, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bulletin)
	}
}

func BulletinUpdate(svc bulletinsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parsePathUUID(r, "bulletinId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateBulletinRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bulletin, err := svc.Update(r.Context(), id, bulletinsvc.UpdateInput{
			Title: payload.Title,
			Body:  payload.Body,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bulletin)
	}
}

func BulletinPublish(svc bulletinsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parsePathUUID(r, "bulletinId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bulletin, err := svc.Publish(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bulletin)
	}
}

func BulletinDelete(svc bulletinsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parsePathUUID(r, "bulletinId")
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
