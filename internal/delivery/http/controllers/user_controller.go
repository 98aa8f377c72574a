package controllers

import (
	"log/slog"
	"net/http"

	h "communityevents/internal/delivery/http/helpers"
	"communityevents/internal/domain"
)

// RegionsCampusesResponse is the response body for GET /users/regions-campuses.
type RegionsCampusesResponse struct {
	Regions  []string `json:"regions"`
	Campuses []string `json:"campuses"`
}

type UserController struct {
	Logger  *slog.Logger
	Service domain.UserService
}

func NewUserController(logger *slog.Logger, svc domain.UserService) *UserController {
	return &UserController{
		Logger:  logger,
		Service: svc,
	}
}

// RegionsCampuses godoc
// @Summary List known regions and campuses
// @Description Distinct regions and campuses across all users. Used to populate event restriction pickers.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse "data contains regions and campuses"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Router /users/regions-campuses [get]
func (c *UserController) RegionsCampuses(w http.ResponseWriter, r *http.Request) {
	regions, campuses, err := c.Service.RegionsAndCampuses(r.Context())
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, err.Error())
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, RegionsCampusesResponse{Regions: regions, Campuses: campuses})
}
