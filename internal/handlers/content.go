// internal/handlers/content.go
package handlers

import (
	"bytes"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/vidmarket-backend/internal/i18n"
	"github.com/javajoker/vidmarket-backend/internal/services"
	"github.com/javajoker/vidmarket-backend/internal/utils"
)

type ContentHandler struct {
	uploadService *services.UploadService
	maxBytes      int64
}

type ContentReferenceRequest struct {
	ContentID string `json:"content_id" validate:"required,max=1024"`
}

// FilenameHeader names the file for raw body uploads.
const FilenameHeader = "X-Filename"

func NewContentHandler(uploadService *services.UploadService, maxBytes int64) *ContentHandler {
	return &ContentHandler{
		uploadService: uploadService,
		maxBytes:      maxBytes,
	}
}

// PUT /assets/:id/content
//
// Accepts the video as a raw body, as a multipart "file" field, or a JSON
// {"content_id"} pointing at content that is already stored.
func (h *ContentHandler) PutContent(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	ownerID, ok := requireAccountID(c)
	if !ok {
		return
	}
	assetID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))

	if mediaType == "application/json" {
		var req ContentReferenceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
			return
		}
		if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
			utils.ValidationErrorResponse(c, validationErrors)
			return
		}

		registration, err := h.uploadService.RegisterReference(c.Request.Context(), assetID, ownerID, strings.TrimSpace(req.ContentID))
		if err != nil {
			utils.ServiceErrorResponse(c, err)
			return
		}
		h.registered(c, registration)
		return
	}

	input := services.RegisterUploadInput{
		AssetID: assetID,
		OwnerID: ownerID,
	}

	if mediaType == "multipart/form-data" {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "file"), nil)
			return
		}
		defer file.Close()

		data, err := h.readLimited(file)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "file"), err.Error())
			return
		}
		input.Data = data
		input.Filename = header.Filename
		input.MimeType = header.Header.Get("Content-Type")
	} else {
		data, err := h.readLimited(c.Request.Body)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "body"), err.Error())
			return
		}
		input.Data = data
		input.Filename = filepath.Base(c.GetHeader(FilenameHeader))
		if input.Filename == "." {
			input.Filename = ""
		}
		input.MimeType = mediaType
	}

	registration, err := h.uploadService.RegisterUpload(c.Request.Context(), input)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}
	h.registered(c, registration)
}

// readLimited reads at most one byte past the limit so the upload
// validator can report an oversized body.
func (h *ContentHandler) readLimited(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(r, h.maxBytes+1)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *ContentHandler) registered(c *gin.Context, registration *services.Registration) {
	lang := utils.GetLangFromContext(c)
	utils.SuccessResponse(c, gin.H{
		"message":       i18n.T(lang, i18n.KeyAssetContentRegistered),
		"content_id":    registration.ContentID,
		"locator":       registration.Locator,
		"storage_proof": registration.StorageProof,
	})
}
