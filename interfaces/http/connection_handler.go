package http

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"crosspost/domain/apperror"
	"crosspost/domain/model"
	"crosspost/infrastructure/logger"
	"crosspost/infrastructure/metrics"
	"crosspost/interfaces/middleware"
	"crosspost/usecase"
)

type IConnectionHandler interface {
	Connect(platform model.Platform) gin.HandlerFunc
	Callback(platform model.Platform) gin.HandlerFunc
	Disconnect(platform model.Platform) gin.HandlerFunc
	List(ctx *gin.Context)
}

type ConnectionHandler struct {
	connectionUsecase usecase.IConnectionUsecase
	dashboardURL      string
}

// NewConnectionHandler sends users back to dashboardURL after a callback.
func NewConnectionHandler(connectionUsecase usecase.IConnectionUsecase, dashboardURL string) IConnectionHandler {
	return &ConnectionHandler{connectionUsecase: connectionUsecase, dashboardURL: dashboardURL}
}

func (h *ConnectionHandler) Connect(platform model.Platform) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, ok := middleware.CurrentUser(ctx)
		if !ok {
			abortWithError(ctx, apperror.ErrUnauthorized)
			return
		}
		authURL, err := h.connectionUsecase.Connect(ctx.Request.Context(), user, platform)
		if err != nil {
			abortWithError(ctx, err)
			return
		}
		ctx.Redirect(http.StatusFound, authURL)
	}
}

// Callback always answers with a redirect to the dashboard.
func (h *ConnectionHandler) Callback(platform model.Platform) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var user *model.AuthUser
		if u, ok := middleware.CurrentUser(ctx); ok {
			user = &u
		}
		params := model.CallbackParams{
			Code:  ctx.Query("code"),
			State: ctx.Query("state"),
			Error: ctx.Query("error"),
		}
		conn, err := h.connectionUsecase.HandleCallback(ctx.Request.Context(), user, platform, params)
		if err != nil {
			code := callbackCode(platform, err)
			metrics.ObserveCallback(string(platform), code)
			logger.GetLogger().
				WithField("platform", platform).
				WithField("code", code).
				WithField("error", err).
				Warn("OAuth callback rejected")
			ctx.Redirect(http.StatusFound, h.redirect("error", code))
			return
		}
		metrics.ObserveCallback(string(platform), "connected")
		logger.GetLogger().
			WithField("platform", platform).
			WithField("user_id", conn.UserID).
			WithField("platform_user_id", conn.PlatformUserID).
			Info("Platform connected")
		ctx.Redirect(http.StatusFound, h.redirect("success", string(platform)+"_connected"))
	}
}

func (h *ConnectionHandler) redirect(key, value string) string {
	return h.dashboardURL + "?" + url.Values{key: {value}}.Encode()
}

// callbackCode never leaks vendor text: only known codes reach the browser.
func callbackCode(platform model.Platform, err error) string {
	var (
		csrf     *apperror.CsrfError
		callback *apperror.CallbackError
		identity *apperror.IdentityError
	)
	switch {
	case errors.As(err, &csrf):
		return csrf.Code
	case errors.As(err, &callback):
		return callback.Code
	case errors.As(err, &identity) && identity.Code != "":
		return identity.Code
	}
	return string(platform) + "_connection_failed"
}

func (h *ConnectionHandler) Disconnect(platform model.Platform) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, ok := middleware.CurrentUser(ctx)
		if !ok {
			abortWithError(ctx, apperror.ErrUnauthorized)
			return
		}
		if err := h.connectionUsecase.Disconnect(ctx.Request.Context(), user, platform); err != nil {
			abortWithError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func (h *ConnectionHandler) List(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		abortWithError(ctx, apperror.ErrUnauthorized)
		return
	}
	connections, err := h.connectionUsecase.List(ctx.Request.Context(), user)
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	if connections == nil {
		connections = []*model.Connection{}
	}
	ctx.JSON(http.StatusOK, gin.H{"connections": connections})
}
