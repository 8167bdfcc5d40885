package controllers

import (
	"net/http"

	"github.com/coraldesk/coraldesk-backend/api/responses"
	"github.com/coraldesk/coraldesk-backend/api/validators"
	imagesvc "github.com/coraldesk/coraldesk-backend/internal/images"
	"github.com/coraldesk/coraldesk-backend/pkg/logger"
)

type moveImageRequest struct {
	Filename     string `json:"filename" validate:"required"`
	FromCategory string `json:"from_category"`
	ToCategory   string `json:"to_category"`
}

func ImageMove(svc imagesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload moveImageRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		path, err := svc.Move(r.Context(), payload.Filename, payload.FromCategory, payload.ToCategory)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"path": path})
	}
}
