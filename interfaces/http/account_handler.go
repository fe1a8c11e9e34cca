package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crosspost/domain/apperror"
	"crosspost/infrastructure/logger"
	"crosspost/interfaces/middleware"
	"crosspost/usecase"
)

type IAccountHandler interface {
	Summary(ctx *gin.Context)
	Delete(ctx *gin.Context)
}

type AccountHandler struct {
	accountUsecase usecase.IAccountUsecase
}

func NewAccountHandler(accountUsecase usecase.IAccountUsecase) IAccountHandler {
	return &AccountHandler{accountUsecase: accountUsecase}
}

// Summary handles GET /api/account/delete and reports what deletion would remove.
func (h *AccountHandler) Summary(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		abortWithError(ctx, apperror.ErrUnauthorized)
		return
	}
	summary, err := h.accountUsecase.Summary(ctx.Request.Context(), user)
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"summary": summary})
}

func (h *AccountHandler) Delete(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		abortWithError(ctx, apperror.ErrUnauthorized)
		return
	}
	if err := h.accountUsecase.Delete(ctx.Request.Context(), user); err != nil {
		abortWithError(ctx, err)
		return
	}
	logger.GetLogger().WithField("user_id", user.ID).Info("Account deleted")
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}
