package http_test

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"

	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/usecase"
)

type MockConnectionUsecase struct {
	mock.Mock
}

func (m *MockConnectionUsecase) Connect(ctx context.Context, user model.AuthUser, platform model.Platform) (string, error) {
	args := m.Called(ctx, user, platform)
	return args.String(0), args.Error(1)
}

func (m *MockConnectionUsecase) HandleCallback(ctx context.Context, user *model.AuthUser, platform model.Platform, params model.CallbackParams) (*model.Connection, error) {
	args := m.Called(ctx, user, platform, params)
	conn, _ := args.Get(0).(*model.Connection)
	return conn, args.Error(1)
}

func (m *MockConnectionUsecase) Disconnect(ctx context.Context, user model.AuthUser, platform model.Platform) error {
	return m.Called(ctx, user, platform).Error(0)
}

func (m *MockConnectionUsecase) List(ctx context.Context, user model.AuthUser) ([]*model.Connection, error) {
	args := m.Called(ctx, user)
	conns, _ := args.Get(0).([]*model.Connection)
	return conns, args.Error(1)
}

func (m *MockConnectionUsecase) EnsureFreshToken(ctx context.Context, conn *model.Connection) (*model.Connection, error) {
	args := m.Called(ctx, conn)
	out, _ := args.Get(0).(*model.Connection)
	return out, args.Error(1)
}

func (m *MockConnectionUsecase) RevokeAll(ctx context.Context, user model.AuthUser) error {
	return m.Called(ctx, user).Error(0)
}

type MockPostUsecase struct {
	mock.Mock
}

func (m *MockPostUsecase) Dispatch(ctx context.Context, user model.AuthUser, req dto.CreatePostRequest) ([]*model.Post, error) {
	args := m.Called(ctx, user, req)
	posts, _ := args.Get(0).([]*model.Post)
	return posts, args.Error(1)
}

func (m *MockPostUsecase) List(ctx context.Context, user model.AuthUser, filter model.PostFilter) ([]*model.Post, error) {
	args := m.Called(ctx, user, filter)
	posts, _ := args.Get(0).([]*model.Post)
	return posts, args.Error(1)
}

type MockVideoUsecase struct {
	mock.Mock
}

func (m *MockVideoUsecase) Upload(ctx context.Context, user model.AuthUser, req dto.UploadVideoRequest) (*model.Video, error) {
	args := m.Called(ctx, user, req)
	v, _ := args.Get(0).(*model.Video)
	return v, args.Error(1)
}

func (m *MockVideoUsecase) Get(ctx context.Context, user model.AuthUser, id string) (*model.Video, error) {
	args := m.Called(ctx, user, id)
	v, _ := args.Get(0).(*model.Video)
	return v, args.Error(1)
}

func (m *MockVideoUsecase) List(ctx context.Context, user model.AuthUser) ([]*model.Video, error) {
	args := m.Called(ctx, user)
	v, _ := args.Get(0).([]*model.Video)
	return v, args.Error(1)
}

func (m *MockVideoUsecase) Delete(ctx context.Context, user model.AuthUser, id string) error {
	return m.Called(ctx, user, id).Error(0)
}

type MockAccountUsecase struct {
	mock.Mock
}

func (m *MockAccountUsecase) Summary(ctx context.Context, user model.AuthUser) (*usecase.AccountSummary, error) {
	args := m.Called(ctx, user)
	s, _ := args.Get(0).(*usecase.AccountSummary)
	return s, args.Error(1)
}

func (m *MockAccountUsecase) Delete(ctx context.Context, user model.AuthUser) error {
	return m.Called(ctx, user).Error(0)
}

var alice = model.AuthUser{ID: "user-alice"}

// asUser stands in for the auth middleware.
func asUser(id string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id != "" {
			c.Set("user_id", id)
		}
		c.Next()
	}
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}
