package http_test

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"crosspost/domain/apperror"
	"crosspost/domain/dto"
	"crosspost/domain/model"
	httpHandler "crosspost/interfaces/http"
)

func videoRouter(uc *MockVideoUsecase, maxBytes int64) http.Handler {
	h := httpHandler.NewVideoHandler(uc, maxBytes)
	r := newEngine()
	api := r.Group("/api", asUser(alice.ID))
	api.POST("/videos/upload", h.Upload)
	api.GET("/videos", h.List)
	api.GET("/videos/:id", h.Get)
	api.DELETE("/videos/:id", h.Delete)
	return r
}

func multipartUpload(t *testing.T, withFile bool, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Launch"))
	require.NoError(t, mw.WriteField("description", "Our launch video"))
	if withFile {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="file"; filename="launch.mp4"`)
		hdr.Set("Content-Type", "video/mp4")
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/videos/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadVideo(t *testing.T) {
	uc := new(MockVideoUsecase)
	var got []byte
	uc.On("Upload", mock.Anything, alice, mock.MatchedBy(func(req dto.UploadVideoRequest) bool {
		return req.FileName == "launch.mp4" && req.ContentType == "video/mp4" && req.Size == 5 &&
			req.Title == "Launch" && req.Description == "Our launch video"
	})).Run(func(args mock.Arguments) {
		got, _ = io.ReadAll(args.Get(2).(dto.UploadVideoRequest).Body)
	}).Return(&model.Video{ID: "vid-1", FilePath: "user-alice/1.mp4", MimeType: "video/mp4"}, nil)

	w := httptest.NewRecorder()
	videoRouter(uc, 0).ServeHTTP(w, multipartUpload(t, true, []byte("bytes")))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"vid-1"`)
	assert.Equal(t, "bytes", string(got))
}

func TestUploadVideoWithoutFile(t *testing.T) {
	uc := new(MockVideoUsecase)
	w := httptest.NewRecorder()
	videoRouter(uc, 0).ServeHTTP(w, multipartUpload(t, false, nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No file provided")
	uc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadVideoRejectedType(t *testing.T) {
	uc := new(MockVideoUsecase)
	uc.On("Upload", mock.Anything, alice, mock.Anything).
		Return(nil, apperror.NewValidation("file", "Invalid file type. Only video files are allowed."))

	w := httptest.NewRecorder()
	videoRouter(uc, 0).ServeHTTP(w, multipartUpload(t, true, []byte("bytes")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid file type")
}

func TestGetVideoNotFound(t *testing.T) {
	uc := new(MockVideoUsecase)
	uc.On("Get", mock.Anything, alice, "vid-9").Return(nil, &apperror.NotFoundError{Resource: "video", ID: "vid-9"})

	w := serve(videoRouter(uc, 0), http.MethodGet, "/api/videos/vid-9")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAndDeleteVideos(t *testing.T) {
	uc := new(MockVideoUsecase)
	uc.On("List", mock.Anything, alice).Return(nil, nil)
	uc.On("Delete", mock.Anything, alice, "vid-1").Return(nil)

	r := videoRouter(uc, 0)
	w := serve(r, http.MethodGet, "/api/videos")
	assert.JSONEq(t, `{"videos":[]}`, w.Body.String())

	w = serve(r, http.MethodDelete, "/api/videos/vid-1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	uc.AssertExpectations(t)
}
