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

// FamilyHandler exposes family endpoints.
type FamilyHandler struct {
	families *service.FamilyService
}

// NewFamilyHandler constructs FamilyHandler.
func NewFamilyHandler(families *service.FamilyService) *FamilyHandler {
	return &FamilyHandler{families: families}
}

// List godoc
// @Summary List families
// @Tags Families
// @Produce json
// @Param search query string false "Search by title"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /families [get]
func (h *FamilyHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.FamilyFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	families, pagination, err := h.families.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, families, pagination)
}

// Get godoc
// @Summary Get family detail
// @Tags Families
// @Produce json
// @Param id path string true "Family ID"
// @Success 200 {object} response.Envelope
// @Router /families/{id} [get]
func (h *FamilyHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	family, err := h.families.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, family, nil)
}

// Create godoc
// @Summary Create family
// @Tags Families
// @Accept json
// @Produce json
// @Param payload body service.FamilyRequest true "Family payload"
// @Success 201 {object} response.Envelope
// @Router /families [post]
func (h *FamilyHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.FamilyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	family, err := h.families.Create(c.Request.Context(), claims, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, family)
}

// Update godoc
// @Summary Update family
// @Tags Families
// @Accept json
// @Produce json
// @Param id path string true "Family ID"
// @Param payload body service.FamilyRequest true "Family payload"
// @Success 200 {object} response.Envelope
// @Router /families/{id} [put]
func (h *FamilyHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.FamilyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	family, err := h.families.Update(c.Request.Context(), claims, c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, family, nil)
}

// Delete godoc
// @Summary Delete family
// @Tags Families
// @Produce json
// @Param id path string true "Family ID"
// @Success 204 {object} response.Envelope
// @Router /families/{id} [delete]
func (h *FamilyHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.families.Delete(c.Request.Context(), claims, c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
