// Package assets 资产相关的 HTTP 处理器
package assets

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/coreux/asset-gateway/api/common"
	"github.com/coreux/asset-gateway/database/models"
	assetsrepo "github.com/coreux/asset-gateway/database/repo/assets"
	"github.com/coreux/asset-gateway/database/repo/documents"
	"github.com/coreux/asset-gateway/internal/asset"
	"github.com/coreux/asset-gateway/internal/document"
	"github.com/coreux/asset-gateway/internal/filestore"
	"github.com/coreux/asset-gateway/internal/manipulator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler 资产处理器
type Handler struct {
	gateway *asset.Gateway
}

// NewHandler 创建资产处理器
func NewHandler(gateway *asset.Gateway) *Handler {
	return &Handler{gateway: gateway}
}

// resourceRef 请求中携带的 owner 引用
type resourceRef struct {
	ID   uint
	Type string
}

func (r resourceRef) AssetOwnerID() uint {
	return r.ID
}

func (r resourceRef) AssetOwnerType() string {
	return r.Type
}

// UploadAsset 上传文件并创建资产
// POST /api/v1/assets
func (h *Handler) UploadAsset(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "Missing file")
		return
	}

	tmpPath := filepath.Join(os.TempDir(), "upload-"+uuid.NewString())
	if err := c.SaveUploadedFile(fileHeader, tmpPath); err != nil {
		common.RespondError(c, http.StatusInternalServerError, "Failed to receive file")
		return
	}
	defer os.Remove(tmpPath)

	upload, err := filestore.NewUpload(tmpPath, fileHeader.Filename, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "Unreadable upload")
		return
	}

	opts := &asset.CreateOptions{
		Manipulation: manipulator.Options{
			Width:  formInt(c, "width"),
			Height: formInt(c, "height"),
			X:      formInt(c, "x"),
			Y:      formInt(c, "y"),
			Title:  c.PostForm("title"),
		},
		UserID: uint(formInt(c, "user_id")),
		Order:  formInt(c, "order"),
	}

	created, err := h.gateway.CreateAsset(c.Request.Context(), upload, opts)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	common.RespondSuccess(c, created)
}

// GetAsset 查询资产及其文档
// GET /api/v1/assets/:id
func (h *Handler) GetAsset(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid asset id")
		return
	}

	found, doc, err := h.gateway.FindWithDocument(c.Request.Context(), uint(id))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	common.RespondSuccess(c, gin.H{
		"asset":    found,
		"document": doc,
	})
}

// attachRequest 关联请求体
type attachRequest struct {
	ResourceID   uint   `json:"resource_id" binding:"required"`
	ResourceType string `json:"resource_type" binding:"required"`
	Primary      bool   `json:"primary"`
}

// AttachAsset 将资产关联到资源
// POST /api/v1/assets/:id/attach
func (h *Handler) AttachAsset(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid asset id")
		return
	}

	var req attachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	found, err := h.gateway.Find(c.Request.Context(), uint(id))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	owner := resourceRef{ID: req.ResourceID, Type: req.ResourceType}
	assoc, err := h.gateway.Attach(c.Request.Context(), owner, found, req.Primary)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	common.RespondSuccess(c, assoc)
}

// ListResourceAssets 列出资源的全部关联
// GET /api/v1/resources/:type/:id/assets
func (h *Handler) ListResourceAssets(c *gin.Context) {
	owner, ok := ownerFromPath(c)
	if !ok {
		return
	}

	associations, err := h.gateway.ListAssociations(c.Request.Context(), owner)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	common.RespondSuccess(c, associations)
}

// GetPrimaryAsset 查询资源的主资产
// GET /api/v1/resources/:type/:id/assets/primary
func (h *Handler) GetPrimaryAsset(c *gin.Context) {
	owner, ok := ownerFromPath(c)
	if !ok {
		return
	}

	primary, err := h.gateway.PrimaryAsset(c.Request.Context(), owner)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if primary == nil {
		common.RespondError(c, http.StatusNotFound, "No primary asset")
		return
	}
	common.RespondSuccess(c, primary)
}

func ownerFromPath(c *gin.Context) (models.HasAssets, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid resource id")
		return nil, false
	}
	resourceType := c.Param("type")
	if resourceType == "" {
		common.RespondError(c, http.StatusBadRequest, "Missing resource type")
		return nil, false
	}
	return resourceRef{ID: uint(id), Type: resourceType}, true
}

func formInt(c *gin.Context, field string) int {
	v, _ := strconv.Atoi(c.PostForm(field))
	return v
}

// respondDomainError 将领域错误映射为 HTTP 状态码
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, manipulator.ErrInvalidDimensions),
		errors.Is(err, manipulator.ErrInvalidAspectRatio):
		common.RespondError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, document.ErrMissingCapability):
		common.RespondError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, document.ErrDriverNotFound):
		common.RespondError(c, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, filestore.ErrStorageUnavailable):
		common.RespondError(c, http.StatusServiceUnavailable, "Storage temporarily unavailable")
	case errors.Is(err, assetsrepo.ErrAssetNotFound),
		errors.Is(err, documents.ErrDocumentNotFound):
		common.RespondError(c, http.StatusNotFound, err.Error())
	default:
		common.RespondError(c, http.StatusInternalServerError, "Internal server error")
	}
}
