package http_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"crosspost/domain/apperror"
	"crosspost/domain/dto"
	"crosspost/domain/model"
	httpHandler "crosspost/interfaces/http"
)

func postRouter(uc *MockPostUsecase, userID string) http.Handler {
	h := httpHandler.NewPostHandler(uc)
	r := newEngine()
	api := r.Group("/api", asUser(userID))
	api.POST("/posts/create", h.Create)
	api.GET("/posts", h.List)
	return r
}

func postJSON(r http.Handler, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreatePost(t *testing.T) {
	uc := new(MockPostUsecase)
	want := dto.CreatePostRequest{
		VideoID: "vid-1",
		Platforms: []dto.PlatformRequest{
			{Platform: "youtube", Title: "Launch"},
			{Platform: "tiktok", Title: "Launch", Tags: []string{"go"}},
		},
	}
	url := "https://www.youtube.com/watch?v=abc"
	msg := "TikTok publish failed (401): access_token_invalid"
	uc.On("Dispatch", mock.Anything, alice, want).Return([]*model.Post{
		{ID: "p1", Platform: model.PlatformYouTube, Status: model.PostStatusPublished, PlatformURL: &url},
		{ID: "p2", Platform: model.PlatformTikTok, Status: model.PostStatusFailed, ErrorMessage: &msg},
	}, nil)

	w := postJSON(postRouter(uc, alice.ID), "/api/posts/create",
		`{"video_id":"vid-1","platforms":[{"platform":"youtube","title":"Launch"},{"platform":"tiktok","title":"Launch","tags":["go"]}]}`)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"success":true`)
	assert.Contains(t, body, `"platform_url":"https://www.youtube.com/watch?v=abc"`)
	assert.Contains(t, body, `"status":"failed"`)
}

func TestCreatePostErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"validation", apperror.NewValidation("platforms", "at least one platform is required"), http.StatusBadRequest, "platforms: at least one platform is required"},
		{"foreign video", &apperror.NotFoundError{Resource: "video", ID: "vid-1"}, http.StatusNotFound, `video \"vid-1\" not found`},
		{"unauthorized", apperror.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"storage", &apperror.VendorError{Platform: "storage", Op: "presign", Message: "boom"}, http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := new(MockPostUsecase)
			uc.On("Dispatch", mock.Anything, alice, mock.Anything).Return(nil, tt.err)

			w := postJSON(postRouter(uc, alice.ID), "/api/posts/create", `{"video_id":"vid-1","platforms":[]}`)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestCreatePostMalformedBody(t *testing.T) {
	uc := new(MockPostUsecase)
	w := postJSON(postRouter(uc, alice.ID), "/api/posts/create", `{"video_id":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	uc.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreatePostUnauthenticated(t *testing.T) {
	uc := new(MockPostUsecase)
	w := postJSON(postRouter(uc, ""), "/api/posts/create", `{}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListPosts(t *testing.T) {
	uc := new(MockPostUsecase)
	uc.On("List", mock.Anything, alice, model.PostFilter{VideoID: "vid-1", Platform: "tiktok"}).
		Return([]*model.Post{{ID: "p2"}, {ID: "p1"}}, nil)

	w := serve(postRouter(uc, alice.ID), http.MethodGet, "/api/posts?video_id=vid-1&platform=tiktok")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Less(t, strings.Index(w.Body.String(), `"p2"`), strings.Index(w.Body.String(), `"p1"`))
}
