package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pocketbook/internal/services"
)

// TagHandler handles transaction tag requests.
type TagHandler struct {
	tagService   services.TagServicer
	auditService services.AuditServicer
}

// NewTagHandler creates a new TagHandler.
func NewTagHandler(tagService services.TagServicer, auditService services.AuditServicer) *TagHandler {
	return &TagHandler{tagService: tagService, auditService: auditService}
}

// CreateTagRequest represents the request payload for creating a tag.
type CreateTagRequest struct {
	Name  string `json:"name" binding:"required,min=1,max=50"`
	Color string `json:"color" binding:"omitempty,hex_color"`
}

// UpdateTagRequest represents the request payload for updating a tag.
type UpdateTagRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=1,max=50"`
	Color *string `json:"color" binding:"omitempty,hex_color"`
}

// CreateTag handles the creation of a new tag.
// @Summary     Create a tag
// @Tags        tags
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID path string           true "Ledger ID"
// @Param       request  body CreateTagRequest true "Tag details"
// @Success     201 {object} models.Tag "Tag created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Duplicate tag"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/tags [post]
func (h *TagHandler) CreateTag(c *gin.Context) {
	ledgerID, err := parsePathID(c, "ledgerID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	tag, err := h.tagService.CreateTag(ledgerID, req.Name, req.Color)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ledgerID, "CREATE_TAG", "tag", tag.ID, c.ClientIP(),
		map[string]interface{}{"name": tag.Name})

	c.JSON(http.StatusCreated, gin.H{"tag": tag})
}

// GetTags handles listing the tags of a ledger.
// @Summary     List tags
// @Tags        tags
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID path string true "Ledger ID"
// @Success     200 {array} models.Tag "Tags"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Ledger not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/tags [get]
func (h *TagHandler) GetTags(c *gin.Context) {
	ledgerID, err := parsePathID(c, "ledgerID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	tags, err := h.tagService.GetLedgerTags(ledgerID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

// GetTag handles fetching a single tag.
// @Summary     Get a tag
// @Tags        tags
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID path string true "Ledger ID"
// @Param       tagID    path string true "Tag ID"
// @Success     200 {object} models.Tag "Tag"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Tag not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/tags/{tagID} [get]
func (h *TagHandler) GetTag(c *gin.Context) {
	ledgerID, tagID, err := pathIDs(c, "tagID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	tag, err := h.tagService.GetTagByID(ledgerID, tagID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tag": tag})
}

// UpdateTag handles renaming or recolouring a tag.
// @Summary     Update a tag
// @Tags        tags
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID path string           true "Ledger ID"
// @Param       tagID    path string           true "Tag ID"
// @Param       request  body UpdateTagRequest true "Fields to update"
// @Success     200 {object} models.Tag "Tag updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Tag not found"
// @Failure     409 {object} ErrorResponse "Duplicate tag"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/tags/{tagID} [put]
func (h *TagHandler) UpdateTag(c *gin.Context) {
	ledgerID, tagID, err := pathIDs(c, "tagID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	tag, err := h.tagService.UpdateTag(ledgerID, tagID, req.Name, req.Color)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ledgerID, "UPDATE_TAG", "tag", tag.ID, c.ClientIP(),
		map[string]interface{}{"name": tag.Name})

	c.JSON(http.StatusOK, gin.H{"tag": tag})
}

// DeleteTag handles deleting a tag. Tagged transactions are kept.
// @Summary     Delete a tag
// @Tags        tags
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID path string true "Ledger ID"
// @Param       tagID    path string true "Tag ID"
// @Success     200 {object} MessageResponse "Tag deleted"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Tag not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/tags/{tagID} [delete]
func (h *TagHandler) DeleteTag(c *gin.Context) {
	ledgerID, tagID, err := pathIDs(c, "tagID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.tagService.DeleteTag(ledgerID, tagID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ledgerID, "DELETE_TAG", "tag", tagID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Tag deleted successfully"})
}
