package main

import (
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/luxtick/luxtick_backend/config"
	"github.com/luxtick/luxtick_backend/models"
	"github.com/luxtick/luxtick_backend/utils"
	"github.com/sirupsen/logrus"
)

// Telegram caps photo downloads, but document-mode photos can be large.
// The gateway uploads those straight to the bucket via a signed URL and
// then asks us to ingest by object key.

const maxReceiptImageBytes int64 = 5 * 1024 * 1024

var receiptImageMimeTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

type signReceiptUploadRequest struct {
	TelegramId int64  `json:"telegram_id" binding:"required"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	MimeType   string `json:"mime_type" binding:"required"`
	Size       int64  `json:"size" binding:"required"`
}

func signReceiptUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var req signReceiptUploadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}
		ext, ok := receiptImageMimeTypes[req.MimeType]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type"})
			return
		}
		if req.Size <= 0 || req.Size > maxReceiptImageBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image size exceeds 5MB limit"})
			return
		}

		user, err := models.EnsureUser(c.Request.Context(), req.TelegramId, req.Username, req.FirstName)
		if err != nil {
			config.LogError(logger, "uploads.go", "signReceiptUploadHandler", "ensure user", req.TelegramId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		objectKey := path.Join(fmt.Sprintf("%d", user.ID), "receipts", "inbox", uuid.New().String()+ext)
		signed, err := utils.SignUpload(c.Request.Context(), objectKey, req.MimeType, 15*time.Minute)
		if err != nil {
			config.LogError(logger, "uploads.go", "signReceiptUploadHandler", "sign upload", objectKey, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign upload"})
			return
		}

		logger.WithFields(logrus.Fields{
			"user_id":    user.ID,
			"mime_type":  req.MimeType,
			"size":       req.Size,
			"object_key": objectKey,
		}).Info("[upload.sign]")

		c.JSON(http.StatusOK, gin.H{
			"upload_url": signed.UploadURL,
			"method":     signed.Method,
			"headers":    signed.Headers,
			"object_key": signed.ObjectKey,
			"expires_at": signed.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}
}

type inboundPhotoByKey struct {
	TelegramId int64  `json:"telegram_id" binding:"required"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	ObjectKey  string `json:"object_key" binding:"required"`
}

func photoByKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var req inboundPhotoByKey
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}

		a, err := getApp()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}

		user, err := models.EnsureUser(c.Request.Context(), req.TelegramId, req.Username, req.FirstName)
		if err != nil {
			config.LogError(logger, "uploads.go", "photoByKeyHandler", "ensure user", req.TelegramId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		// Only allow keys the user's own signed upload could have produced.
		if strings.Contains(req.ObjectKey, "..") || !strings.HasPrefix(req.ObjectKey, fmt.Sprintf("%d/receipts/", user.ID)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid object key"})
			return
		}

		image, contentType, err := utils.DownloadObject(c.Request.Context(), req.ObjectKey, maxReceiptImageBytes)
		if err != nil {
			config.LogError(logger, "uploads.go", "photoByKeyHandler", "download", req.ObjectKey, err)
			c.JSON(http.StatusNotFound, gin.H{"error": "uploaded image not found"})
			return
		}
		if contentType != "" && !strings.HasPrefix(contentType, "image/") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "object is not an image"})
			return
		}

		ctx := utils.SetUserIdInContext(c.Request.Context(), user.ID)
		result, err := a.pipeline.IngestReceiptImage(ctx, user.ID, image)
		if err != nil {
			config.LogError(logger, "uploads.go", "photoByKeyHandler", "ingest", user.ID, err)
			respondIngestError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"draft_id": result.Draft.ID,
			"reply":    result.Summary,
		})
	}
}
