package controllers

import (
	"net/http"

	"github.com/coraldesk/coraldesk-backend/api/responses"
	"github.com/coraldesk/coraldesk-backend/api/validators"
	authsvc "github.com/coraldesk/coraldesk-backend/internal/auth"
	"github.com/coraldesk/coraldesk-backend/internal/clients"
	"github.com/coraldesk/coraldesk-backend/pkg/logger"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Actor    string `json:"actor,omitempty" validate:"omitempty,oneof=staff client"`
}

type registerRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Name     string  `json:"name" validate:"required"`
	Phone    *string `json:"phone,omitempty"`
	Password string  `json:"password" validate:"required,min=8"`
}

type refreshRequest struct {
	Token string `json:"token" validate:"required"`
}

// AuthLogin authenticates a client by default and staff when requested.
func AuthLogin(svc authsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var (
			session *authsvc.Session
			err     error
		)
		if payload.Actor == "staff" {
			session, err = svc.StaffLogin(r.Context(), payload.Email, payload.Password)
		} else {
			session, err = svc.ClientLogin(r.Context(), payload.Email, payload.Password)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// AuthRegister creates a client account and immediately logs it in.
func AuthRegister(clientSvc clients.Service, svc authsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload registerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := clientSvc.Register(r.Context(), clients.RegisterInput{
			Email:    payload.Email,
			Name:     payload.Name,
			Phone:    payload.Phone,
			Password: payload.Password,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.ClientLogin(r.Context(), payload.Email, payload.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

// AuthRefresh reissues a token for a still-valid session.
func AuthRefresh(svc authsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload refreshRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Refresh(r.Context(), payload.Token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}
