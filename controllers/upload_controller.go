package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atlasedge/atlasedge-api/config"
	"github.com/atlasedge/atlasedge-api/models"
	"github.com/atlasedge/atlasedge-api/services"
	"github.com/atlasedge/atlasedge-api/utils"
)

// UploadServiceImage handles POST /api/v1/services/:id/image - uploads a
// catalog image for a service (admins only). Replaces and deletes any
// previous image.
func UploadServiceImage(c *gin.Context) {
	_, ok := requireAdmin(c)
	if !ok {
		return
	}

	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	db := config.GetDB()
	var service models.Service
	if err := db.First(&service, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "SERVICE_NOT_FOUND", "Service not found")
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "An image file is required")
		return
	}

	imageService := services.GetImageService()
	if imageService == nil {
		respondError(c, http.StatusInternalServerError, "SERVER_ERROR", "Image storage is not configured")
		return
	}

	imageKey, err := imageService.UploadImage(fileHeader)
	if err != nil {
		var uploadErr *utils.FileUploadError
		if errors.As(err, &uploadErr) {
			respondError(c, http.StatusBadRequest, uploadErr.Code, uploadErr.Message)
			return
		}
		respondError(c, http.StatusInternalServerError, "UPLOAD_ERROR", "Failed to upload image")
		return
	}

	oldKey := service.ImageS3Key

	if err := db.Model(&service).Update("image_s3_key", imageKey).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to save image reference")
		return
	}

	// The replaced image is best-effort cleanup; a failed delete is not an
	// API error
	if oldKey != nil && *oldKey != "" && *oldKey != imageKey {
		_ = imageService.DeleteImage(*oldKey)
	}

	service.ImageS3Key = &imageKey
	attachImageURL(&service)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    service,
	})
}
