package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crosspost/domain/apperror"
	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/interfaces/middleware"
	"crosspost/usecase"
)

type IPostHandler interface {
	Create(ctx *gin.Context)
	List(ctx *gin.Context)
}

type PostHandler struct {
	postUsecase usecase.IPostUsecase
}

func NewPostHandler(postUsecase usecase.IPostUsecase) IPostHandler {
	return &PostHandler{postUsecase: postUsecase}
}

// Create handles POST /api/posts/create. It answers once every platform has
// settled.
func (h *PostHandler) Create(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		abortWithError(ctx, apperror.ErrUnauthorized)
		return
	}
	var req dto.CreatePostRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abortWithError(ctx, apperror.NewValidation("", "invalid request body"))
		return
	}
	posts, err := h.postUsecase.Dispatch(ctx.Request.Context(), user, req)
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.CreatePostResponse{Success: true, Posts: posts})
}

// List handles GET /api/posts?video_id=&platform=.
func (h *PostHandler) List(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		abortWithError(ctx, apperror.ErrUnauthorized)
		return
	}
	filter := model.PostFilter{
		VideoID:  ctx.Query("video_id"),
		Platform: model.Platform(ctx.Query("platform")),
	}
	posts, err := h.postUsecase.List(ctx.Request.Context(), user, filter)
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"posts": posts})
}
