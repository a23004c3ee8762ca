package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jlebunetel/toolbox-api/internal/service"
	appErrors "github.com/jlebunetel/toolbox-api/pkg/errors"
	"github.com/jlebunetel/toolbox-api/pkg/response"
)

// FeedHandler serves public iCalendar documents. Calendar clients subscribe
// to these URLs without JWT authentication.
type FeedHandler struct {
	calendars *service.CalendarService
}

// NewFeedHandler constructs FeedHandler.
func NewFeedHandler(calendars *service.CalendarService) *FeedHandler {
	return &FeedHandler{calendars: calendars}
}

// Direct godoc
// @Summary Download calendar feed
// @Description iCalendar document for the calendar, addressed by ID and filename
// @Tags Feeds
// @Produce text/calendar
// @Param id path string true "Calendar ID"
// @Param filename path string true "Feed filename"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /calendars/{id}/{filename} [get]
func (h *FeedHandler) Direct(c *gin.Context) {
	payload, err := h.calendars.RenderFeedFile(c.Request.Context(), c.Param("id"), c.Param("filename"))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveCalendar(c, c.Param("filename"), payload)
}

// Signed godoc
// @Summary Download calendar feed via signed link
// @Description iCalendar document addressed by filename, authorized by HMAC token
// @Tags Feeds
// @Produce text/calendar
// @Param filename path string true "Feed filename"
// @Param token query string true "Signed feed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /feeds/{filename} [get]
func (h *FeedHandler) Signed(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "feed token required"))
		return
	}

	payload, err := h.calendars.ResolveSignedFeed(c.Request.Context(), c.Param("filename"), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveCalendar(c, c.Param("filename"), payload)
}

func serveCalendar(c *gin.Context, filename string, payload []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", payload)
}
