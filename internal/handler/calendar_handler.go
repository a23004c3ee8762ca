package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jlebunetel/toolbox-api/internal/models"
	"github.com/jlebunetel/toolbox-api/internal/service"
	appErrors "github.com/jlebunetel/toolbox-api/pkg/errors"
	"github.com/jlebunetel/toolbox-api/pkg/response"
)

// CalendarHandler exposes calendar management endpoints.
type CalendarHandler struct {
	calendars      *service.CalendarService
	exportsEnabled bool
}

// NewCalendarHandler constructs CalendarHandler.
func NewCalendarHandler(calendars *service.CalendarService, exportsEnabled bool) *CalendarHandler {
	return &CalendarHandler{calendars: calendars, exportsEnabled: exportsEnabled}
}

// List godoc
// @Summary List calendars
// @Tags Calendars
// @Produce json
// @Param search query string false "Search by title"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /calendars [get]
func (h *CalendarHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.CalendarFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	calendars, pagination, err := h.calendars.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, calendars, pagination)
}

// Get godoc
// @Summary Get calendar detail
// @Tags Calendars
// @Produce json
// @Param id path string true "Calendar ID"
// @Success 200 {object} response.Envelope
// @Router /calendars/{id} [get]
func (h *CalendarHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	calendar, err := h.calendars.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, calendar, nil)
}

// Create godoc
// @Summary Create calendar
// @Tags Calendars
// @Accept json
// @Produce json
// @Param payload body service.CalendarRequest true "Calendar payload"
// @Success 201 {object} response.Envelope
// @Router /calendars [post]
func (h *CalendarHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CalendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	calendar, err := h.calendars.Create(c.Request.Context(), claims, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, calendar)
}

// Update godoc
// @Summary Update calendar
// @Tags Calendars
// @Accept json
// @Produce json
// @Param id path string true "Calendar ID"
// @Param payload body service.CalendarRequest true "Calendar payload"
// @Success 200 {object} response.Envelope
// @Router /calendars/{id} [put]
func (h *CalendarHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CalendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	calendar, err := h.calendars.Update(c.Request.Context(), claims, c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, calendar, nil)
}

// Delete godoc
// @Summary Delete calendar
// @Tags Calendars
// @Produce json
// @Param id path string true "Calendar ID"
// @Success 204 {object} response.Envelope
// @Router /calendars/{id} [delete]
func (h *CalendarHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.calendars.Delete(c.Request.Context(), claims, c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Upcoming godoc
// @Summary List upcoming birthdays
// @Description Birth anniversaries within the next days for the calendar's people
// @Tags Calendars
// @Produce json
// @Param id path string true "Calendar ID"
// @Param days query int false "Window in days (default 7)"
// @Success 200 {object} response.Envelope
// @Router /calendars/{id}/upcoming [get]
func (h *CalendarHandler) Upcoming(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	events, err := h.calendars.UpcomingBirthdays(c.Request.Context(), claims, c.Param("id"), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Export godoc
// @Summary Export upcoming birthdays
// @Description Download the upcoming-birthday table as CSV or PDF
// @Tags Calendars
// @Produce text/csv,application/pdf
// @Param id path string true "Calendar ID"
// @Param format query string false "csv or pdf (default csv)"
// @Param days query int false "Window in days (default 7)"
// @Success 200 {file} file
// @Router /calendars/{id}/export [get]
func (h *CalendarHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if !h.exportsEnabled {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}

	format := c.DefaultQuery("format", "csv")
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))

	contentType, payload, err := h.calendars.ExportUpcoming(c.Request.Context(), claims, c.Param("id"), format, days)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="upcoming.%s"`, format))
	c.Data(http.StatusOK, contentType, payload)
}

// FeedURL godoc
// @Summary Get feed links
// @Description Direct and signed subscription URLs for the calendar feed
// @Tags Calendars
// @Produce json
// @Param id path string true "Calendar ID"
// @Success 200 {object} response.Envelope
// @Router /calendars/{id}/feed-url [get]
func (h *CalendarHandler) FeedURL(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	urls, err := h.calendars.FeedURL(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, urls, nil)
}
