package http_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"crosspost/domain/apperror"
	"crosspost/domain/model"
	httpHandler "crosspost/interfaces/http"
)

const dashboard = "https://app.example.com/dashboard"

func connectionRouter(uc *MockConnectionUsecase, userID string) http.Handler {
	h := httpHandler.NewConnectionHandler(uc, dashboard)
	r := newEngine()
	api := r.Group("/api", asUser(userID))
	for _, p := range model.Platforms() {
		api.GET("/"+string(p)+"/connect", h.Connect(p))
		api.GET("/"+string(p)+"/callback", h.Callback(p))
		api.POST("/"+string(p)+"/disconnect", h.Disconnect(p))
	}
	api.GET("/connections", h.List)
	return r
}

func serve(r http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestConnectRedirects(t *testing.T) {
	uc := new(MockConnectionUsecase)
	uc.On("Connect", mock.Anything, alice, model.PlatformTikTok).Return("https://www.tiktok.com/v2/auth/authorize/?state=abc", nil)

	w := serve(connectionRouter(uc, alice.ID), http.MethodGet, "/api/tiktok/connect")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://www.tiktok.com/v2/auth/authorize/?state=abc", w.Header().Get("Location"))
}

func TestConnectNotConfigured(t *testing.T) {
	uc := new(MockConnectionUsecase)
	uc.On("Connect", mock.Anything, alice, model.PlatformYouTube).
		Return("", &apperror.ConfigurationError{Component: "youtube", Reason: "client id and secret are required"})

	w := serve(connectionRouter(uc, alice.ID), http.MethodGet, "/api/youtube/connect")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "youtube is not configured")
}

func TestConnectRequiresUser(t *testing.T) {
	uc := new(MockConnectionUsecase)
	w := serve(connectionRouter(uc, ""), http.MethodGet, "/api/youtube/connect")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	uc.AssertNotCalled(t, "Connect", mock.Anything, mock.Anything, mock.Anything)
}

func TestCallbackSuccess(t *testing.T) {
	uc := new(MockConnectionUsecase)
	params := model.CallbackParams{Code: "c0de", State: "st4te"}
	uc.On("HandleCallback", mock.Anything, &alice, model.PlatformYouTube, params).
		Return(&model.Connection{UserID: alice.ID, Platform: model.PlatformYouTube, PlatformUserID: "UC1"}, nil)

	w := serve(connectionRouter(uc, alice.ID), http.MethodGet, "/api/youtube/callback?code=c0de&state=st4te")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, dashboard+"?success=youtube_connected", w.Header().Get("Location"))
}

func TestCallbackErrorCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"csrf", &apperror.CsrfError{Code: apperror.CodeStateExpired}, "state_expired"},
		{"vendor denied", &apperror.CallbackError{Code: "instagram_auth_failed"}, "instagram_auth_failed"},
		{"no business account", &apperror.IdentityError{Platform: "instagram", Code: "instagram_no_business_account", Reason: "no business account"}, "instagram_no_business_account"},
		{"vendor failure", &apperror.VendorError{Platform: "instagram", Op: "token exchange", StatusCode: 400, Message: "secret vendor body"}, "instagram_connection_failed"},
		{"anything else", errors.New("db down"), "instagram_connection_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := new(MockConnectionUsecase)
			uc.On("HandleCallback", mock.Anything, (*model.AuthUser)(nil), model.PlatformInstagram, mock.Anything).Return(nil, tt.err)

			w := serve(connectionRouter(uc, ""), http.MethodGet, "/api/instagram/callback?code=x&state=y")
			assert.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, dashboard+"?error="+tt.wantCode, w.Header().Get("Location"))
			assert.NotContains(t, w.Header().Get("Location"), "secret")
		})
	}
}

func TestDisconnect(t *testing.T) {
	uc := new(MockConnectionUsecase)
	uc.On("Disconnect", mock.Anything, alice, model.PlatformTikTok).Return(nil).Twice()

	r := connectionRouter(uc, alice.ID)
	for i := 0; i < 2; i++ {
		w := serve(r, http.MethodPost, "/api/tiktok/disconnect")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true}`, w.Body.String())
	}
	uc.AssertExpectations(t)
}

func TestDisconnectFailureIsGeneric(t *testing.T) {
	uc := new(MockConnectionUsecase)
	uc.On("Disconnect", mock.Anything, alice, model.PlatformTikTok).Return(errors.New("pq: connection refused"))

	w := serve(connectionRouter(uc, alice.ID), http.MethodPost, "/api/tiktok/disconnect")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}

func TestListConnectionsHidesTokens(t *testing.T) {
	uc := new(MockConnectionUsecase)
	uc.On("List", mock.Anything, alice).Return([]*model.Connection{{
		UserID:           alice.ID,
		Platform:         model.PlatformYouTube,
		PlatformUsername: "Alice",
		AccessToken:      "ya29.secret",
		RefreshToken:     "1//refresh",
		IsActive:         true,
	}}, nil)

	w := serve(connectionRouter(uc, alice.ID), http.MethodGet, "/api/connections")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"platform_username":"Alice"`)
	assert.NotContains(t, w.Body.String(), "ya29.secret")
	assert.NotContains(t, w.Body.String(), "1//refresh")
}

func TestListConnectionsEmpty(t *testing.T) {
	uc := new(MockConnectionUsecase)
	uc.On("List", mock.Anything, alice).Return(nil, nil)

	w := serve(connectionRouter(uc, alice.ID), http.MethodGet, "/api/connections")
	assert.JSONEq(t, `{"connections":[]}`, w.Body.String())
}
