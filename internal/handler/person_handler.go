package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jlebunetel/toolbox-api/internal/models"
	"github.com/jlebunetel/toolbox-api/internal/service"
	appErrors "github.com/jlebunetel/toolbox-api/pkg/errors"
	"github.com/jlebunetel/toolbox-api/pkg/response"
)

// PersonHandler exposes person endpoints.
type PersonHandler struct {
	people *service.PersonService
}

// NewPersonHandler constructs PersonHandler.
func NewPersonHandler(people *service.PersonService) *PersonHandler {
	return &PersonHandler{people: people}
}

// List godoc
// @Summary List people
// @Tags People
// @Produce json
// @Param search query string false "Search by name"
// @Param familyId query string false "Filter by family"
// @Param alive query bool false "Filter by living state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /people [get]
func (h *PersonHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.PersonFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.FamilyID = c.Query("familyId")
	if alive := c.Query("alive"); alive != "" {
		v := alive == "true"
		filter.Alive = &v
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	people, pagination, err := h.people.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, people, pagination)
}

// Get godoc
// @Summary Get person detail
// @Tags People
// @Produce json
// @Param id path string true "Person ID"
// @Success 200 {object} response.Envelope
// @Router /people/{id} [get]
func (h *PersonHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	person, err := h.people.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, person, nil)
}

// Create godoc
// @Summary Create person
// @Tags People
// @Accept json
// @Produce json
// @Param payload body service.PersonRequest true "Person payload"
// @Success 201 {object} response.Envelope
// @Router /people [post]
func (h *PersonHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.PersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	person, err := h.people.Create(c.Request.Context(), claims, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, person)
}

// Update godoc
// @Summary Update person
// @Tags People
// @Accept json
// @Produce json
// @Param id path string true "Person ID"
// @Param payload body service.PersonRequest true "Person payload"
// @Success 200 {object} response.Envelope
// @Router /people/{id} [put]
func (h *PersonHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.PersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	person, err := h.people.Update(c.Request.Context(), claims, c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, person, nil)
}

// Delete godoc
// @Summary Delete person
// @Tags People
// @Produce json
// @Param id path string true "Person ID"
// @Success 204 {object} response.Envelope
// @Router /people/{id} [delete]
func (h *PersonHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.people.Delete(c.Request.Context(), claims, c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
