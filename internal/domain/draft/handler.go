package draft

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dabform/dabform/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/drafts", h.CreateDraft)
	api.GET("/drafts", h.ListDrafts)
	api.GET("/drafts/current", h.GetCurrent)
	api.GET("/drafts/:id", h.GetDraft)
	api.POST("/drafts/:id/select", h.SelectDraft)
	api.DELETE("/drafts/:id", h.DeleteDraft)

	api.PUT("/drafts/current", h.SaveDraft)
	api.POST("/drafts/current/validate", h.ValidateDraft)
	api.POST("/drafts/current/advance", h.AdvanceDraft)
	api.POST("/drafts/current/back", h.BackDraft)
	api.POST("/drafts/current/finish", h.FinishDraft)
}

// saveRequest carries a shallow record patch plus an optional explicit step
// jump. Absent record keys stay untouched, explicit nulls clear a value.
type saveRequest struct {
	Record RecordPatch `json:"record"`
	Step   *int        `json:"step"`
}

type validationResponse struct {
	Step   int    `json:"step"`
	Valid  bool   `json:"valid"`
	Errors Errors `json:"errors"`
}

func owner(c echo.Context) string {
	o, _ := c.Get("owner").(string)
	return o
}

func (h *Handler) CreateDraft(c echo.Context) error {
	d, err := h.svc.Create(c.Request().Context(), owner(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) ListDrafts(c echo.Context) error {
	pg := pagination.FromContext(c)
	drafts, total, err := h.svc.List(c.Request().Context(), owner(c), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(drafts, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetDraft(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.Get(c.Request().Context(), owner(c), id)
	if err != nil {
		return draftError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetCurrent(c echo.Context) error {
	d, err := h.svc.Current(c.Request().Context(), owner(c))
	if err != nil {
		return draftError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) SelectDraft(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.Select(c.Request().Context(), owner(c), id)
	if err != nil {
		return draftError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDraft(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), owner(c), id); err != nil {
		return draftError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SaveDraft(c echo.Context) error {
	var req saveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.Save(c.Request().Context(), owner(c), req.Record, req.Step)
	if err != nil {
		return draftError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ValidateDraft(c echo.Context) error {
	d, errs, err := h.svc.Validate(c.Request().Context(), owner(c))
	if err != nil {
		return draftError(err)
	}
	return c.JSON(http.StatusOK, validationResponse{Step: d.CurrentStep, Valid: len(errs) == 0, Errors: errs})
}

func (h *Handler) AdvanceDraft(c echo.Context) error {
	d, errs, err := h.svc.Advance(c.Request().Context(), owner(c))
	if err != nil {
		return draftError(err)
	}
	if len(errs) > 0 {
		return c.JSON(http.StatusUnprocessableEntity, validationResponse{Step: d.CurrentStep, Errors: errs})
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) BackDraft(c echo.Context) error {
	d, err := h.svc.Back(c.Request().Context(), owner(c))
	if err != nil {
		return draftError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) FinishDraft(c echo.Context) error {
	res, errs, err := h.svc.Finish(c.Request().Context(), owner(c))
	if err != nil {
		return draftError(err)
	}
	if len(errs) > 0 {
		return c.JSON(http.StatusUnprocessableEntity, validationResponse{Step: LastStep, Errors: errs})
	}
	return c.JSON(http.StatusOK, res)
}

func draftError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "draft not found")
	case errors.Is(err, ErrNoCurrent):
		return echo.NewHTTPError(http.StatusNotFound, "no current draft")
	case errors.Is(err, ErrBusy):
		return echo.NewHTTPError(http.StatusConflict, "submission already in progress")
	case errors.Is(err, ErrNotFinal):
		return echo.NewHTTPError(http.StatusConflict, "draft is not on the final step")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
