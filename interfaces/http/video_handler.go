package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"crosspost/domain/apperror"
	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/interfaces/middleware"
	"crosspost/usecase"
)

// multipart framing allowance on top of the file size limit
const formOverhead = 1 << 20

type IVideoHandler interface {
	Upload(ctx *gin.Context)
	List(ctx *gin.Context)
	Get(ctx *gin.Context)
	Delete(ctx *gin.Context)
}

type VideoHandler struct {
	videoUsecase usecase.IVideoUsecase
	maxBytes     int64
}

func NewVideoHandler(videoUsecase usecase.IVideoUsecase, maxBytes int64) IVideoHandler {
	if maxBytes <= 0 {
		maxBytes = usecase.DefaultMaxUploadBytes
	}
	return &VideoHandler{videoUsecase: videoUsecase, maxBytes: maxBytes}
}

// Upload handles multipart POST /api/videos/upload with file, title and description.
func (h *VideoHandler) Upload(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		abortWithError(ctx, apperror.ErrUnauthorized)
		return
	}
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, h.maxBytes+formOverhead)

	header, err := ctx.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(ctx, apperror.NewValidation("file", "File too large."))
			return
		}
		abortWithError(ctx, apperror.NewValidation("file", "No file provided"))
		return
	}
	file, err := header.Open()
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	defer file.Close()

	video, err := h.videoUsecase.Upload(ctx.Request.Context(), user, dto.UploadVideoRequest{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
		Title:       ctx.PostForm("title"),
		Description: ctx.PostForm("description"),
	})
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"video": video})
}

func (h *VideoHandler) List(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		abortWithError(ctx, apperror.ErrUnauthorized)
		return
	}
	videos, err := h.videoUsecase.List(ctx.Request.Context(), user)
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	if videos == nil {
		videos = []*model.Video{}
	}
	ctx.JSON(http.StatusOK, gin.H{"videos": videos})
}

func (h *VideoHandler) Get(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		abortWithError(ctx, apperror.ErrUnauthorized)
		return
	}
	video, err := h.videoUsecase.Get(ctx.Request.Context(), user, ctx.Param("id"))
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"video": video})
}

func (h *VideoHandler) Delete(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		abortWithError(ctx, apperror.ErrUnauthorized)
		return
	}
	if err := h.videoUsecase.Delete(ctx.Request.Context(), user, ctx.Param("id")); err != nil {
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}
