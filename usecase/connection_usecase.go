package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"crosspost/domain/apperror"
	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"

	"golang.org/x/sync/errgroup"
)

const (
	stateTokenBytes = 32
	// tokenRefreshLeeway refreshes tokens that expire within the next minute.
	tokenRefreshLeeway = time.Minute
)

// IConnectionUsecase runs the redirect-based OAuth connect flow and manages
// the stored platform connections.
type IConnectionUsecase interface {
	// Connect persists a fresh state and returns the vendor authorize URL.
	Connect(ctx context.Context, user model.AuthUser, platform model.Platform) (string, error)
	// HandleCallback validates and consumes the state, exchanges the code and
	// stores the connection. user is nil when the callback arrived unauthenticated.
	HandleCallback(ctx context.Context, user *model.AuthUser, platform model.Platform, params model.CallbackParams) (*model.Connection, error)
	Disconnect(ctx context.Context, user model.AuthUser, platform model.Platform) error
	List(ctx context.Context, user model.AuthUser) ([]*model.Connection, error)
	// EnsureFreshToken refreshes an expired access token when a refresh token is stored.
	EnsureFreshToken(ctx context.Context, conn *model.Connection) (*model.Connection, error)
	// RevokeAll revokes every stored token for the user. Failures are logged only.
	RevokeAll(ctx context.Context, user model.AuthUser) error
}

type connectionUsecase struct {
	connections repository.IConnection
	states      repository.IOAuthState
	providers   map[model.Platform]repository.IPlatformOAuth
	stateTTL    time.Duration
	now         func() time.Time
}

func NewConnectionUsecase(connections repository.IConnection, states repository.IOAuthState, stateTTL time.Duration, providers ...repository.IPlatformOAuth) IConnectionUsecase {
	m := make(map[model.Platform]repository.IPlatformOAuth, len(providers))
	for _, p := range providers {
		m[p.Platform()] = p
	}
	if stateTTL <= 0 {
		stateTTL = 10 * time.Minute
	}
	return &connectionUsecase{
		connections: connections,
		states:      states,
		providers:   m,
		stateTTL:    stateTTL,
		now:         time.Now,
	}
}

func (u *connectionUsecase) provider(platform model.Platform) (repository.IPlatformOAuth, error) {
	p, ok := u.providers[platform]
	if !ok {
		return nil, apperror.NewValidation("platform", fmt.Sprintf("unsupported platform %q", platform))
	}
	return p, nil
}

func (u *connectionUsecase) Connect(ctx context.Context, user model.AuthUser, platform model.Platform) (string, error) {
	if user.ID == "" {
		return "", apperror.ErrUnauthorized
	}
	p, err := u.provider(platform)
	if err != nil {
		return "", err
	}
	if !p.Configured() {
		return "", &apperror.ConfigurationError{Component: platform.DisplayName() + " OAuth", Reason: "client id or secret missing"}
	}

	token, err := newStateToken()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	now := u.now().UTC()
	state := &model.OAuthState{
		StateToken: token,
		UserID:     user.ID,
		Platform:   platform,
		ExpiresAt:  now.Add(u.stateTTL),
		CreatedAt:  now,
	}
	if err := u.states.Create(ctx, state); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	return p.AuthCodeURL(token), nil
}

// discardState burns a state on an aborted callback so it cannot be replayed.
func (u *connectionUsecase) discardState(ctx context.Context, platform model.Platform, state string) {
	if state == "" {
		return
	}
	if _, err := u.states.Consume(ctx, state, platform); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		logger.GetLogger().WithField("platform", platform).WithField("error", err).Warn("failed to discard oauth state")
	}
}

func (u *connectionUsecase) HandleCallback(ctx context.Context, user *model.AuthUser, platform model.Platform, params model.CallbackParams) (*model.Connection, error) {
	lg := logger.GetLogger().WithField("platform", platform)
	p, err := u.provider(platform)
	if err != nil {
		return nil, &apperror.CallbackError{Code: apperror.CodeInvalidCallback}
	}

	if params.Error != "" {
		lg.WithField("vendor_error", params.Error).Warn("oauth provider returned an error")
		u.discardState(ctx, platform, params.State)
		return nil, &apperror.CallbackError{Code: string(platform) + "_auth_failed"}
	}
	if params.Code == "" || params.State == "" {
		return nil, &apperror.CallbackError{Code: apperror.CodeInvalidCallback}
	}
	if user == nil || user.ID == "" {
		u.discardState(ctx, platform, params.State)
		return nil, &apperror.CallbackError{Code: apperror.CodeUnauthorized}
	}

	if err := u.consumeState(ctx, user.ID, platform, params.State); err != nil {
		return nil, err
	}

	token, err := p.Exchange(ctx, params.Code)
	if err != nil {
		return nil, fmt.Errorf("exchange %s code: %w", platform, err)
	}
	identity, err := p.FetchIdentity(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("fetch %s identity: %w", platform, err)
	}

	accessToken := token.AccessToken
	if identity.AccessToken != "" {
		accessToken = identity.AccessToken
	}
	conn := &model.Connection{
		UserID:           user.ID,
		Platform:         platform,
		PlatformUserID:   identity.UserID,
		PlatformUsername: identity.Username,
		AccessToken:      accessToken,
		RefreshToken:     token.RefreshToken,
		TokenExpiresAt:   token.ExpiresAt,
		Scope:            token.Scope,
		IsActive:         true,
	}
	if err := u.connections.Upsert(ctx, conn); err != nil {
		return nil, fmt.Errorf("save %s connection: %w", platform, err)
	}
	lg.WithField("user_id", user.ID).WithField("platform_user_id", conn.PlatformUserID).Info("platform connected")
	return conn, nil
}

// consumeState removes the state before anything else happens so it can never
// be replayed, whatever the outcome. Expired rows are swept afterwards.
func (u *connectionUsecase) consumeState(ctx context.Context, userID string, platform model.Platform, token string) error {
	lg := logger.GetLogger().WithField("platform", platform)
	state, err := u.states.Consume(ctx, token, platform)
	if n, sweepErr := u.states.DeleteExpired(ctx); sweepErr != nil {
		lg.WithField("error", sweepErr).Warn("failed to sweep expired oauth states")
	} else if n > 0 {
		lg.WithField("count", n).Debug("swept expired oauth states")
	}
	if errors.Is(err, apperror.ErrNotFound) {
		return &apperror.CsrfError{Code: apperror.CodeInvalidState}
	}
	if err != nil {
		return fmt.Errorf("consume oauth state: %w", err)
	}
	if state.Expired(u.now()) {
		return &apperror.CsrfError{Code: apperror.CodeStateExpired}
	}
	if state.UserID != userID {
		lg.WithField("state_user", state.UserID).WithField("current_user", userID).Warn("oauth state user mismatch")
		return &apperror.CsrfError{Code: apperror.CodeUnauthorized}
	}
	return nil
}

func (u *connectionUsecase) Disconnect(ctx context.Context, user model.AuthUser, platform model.Platform) error {
	if user.ID == "" {
		return apperror.ErrUnauthorized
	}
	p, err := u.provider(platform)
	if err != nil {
		return err
	}

	conn, err := u.connections.GetActive(ctx, user.ID, platform)
	switch {
	case err == nil:
		u.revoke(ctx, p, conn)
	case !errors.Is(err, apperror.ErrNotFound):
		logger.GetLogger().WithField("platform", platform).WithField("error", err).Warn("failed to load connection for revoke")
	}

	if _, err := u.connections.Delete(ctx, user.ID, platform); err != nil {
		return fmt.Errorf("delete %s connection: %w", platform, err)
	}
	return nil
}

func (u *connectionUsecase) revoke(ctx context.Context, p repository.IPlatformOAuth, conn *model.Connection) {
	if conn.AccessToken == "" {
		return
	}
	if err := p.Revoke(ctx, conn.AccessToken); err != nil {
		logger.GetLogger().WithField("platform", conn.Platform).WithField("user_id", conn.UserID).
			WithField("error", err).Warn("token revoke failed")
	}
}

func (u *connectionUsecase) List(ctx context.Context, user model.AuthUser) ([]*model.Connection, error) {
	if user.ID == "" {
		return nil, apperror.ErrUnauthorized
	}
	list, err := u.connections.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*model.Connection{}
	}
	return list, nil
}

func (u *connectionUsecase) EnsureFreshToken(ctx context.Context, conn *model.Connection) (*model.Connection, error) {
	if conn.RefreshToken == "" || !conn.Expired(u.now(), tokenRefreshLeeway) {
		return conn, nil
	}
	p, err := u.provider(conn.Platform)
	if err != nil {
		return nil, err
	}
	token, err := p.Refresh(ctx, conn.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh %s token: %w", conn.Platform, err)
	}

	refreshed := *conn
	refreshed.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		refreshed.RefreshToken = token.RefreshToken
	}
	refreshed.TokenExpiresAt = token.ExpiresAt
	if token.Scope != "" {
		refreshed.Scope = token.Scope
	}
	if err := u.connections.Upsert(ctx, &refreshed); err != nil {
		return nil, fmt.Errorf("save refreshed %s token: %w", conn.Platform, err)
	}
	return &refreshed, nil
}

func (u *connectionUsecase) RevokeAll(ctx context.Context, user model.AuthUser) error {
	list, err := u.connections.ListByUser(ctx, user.ID)
	if err != nil {
		return err
	}
	var g errgroup.Group
	for _, conn := range list {
		conn := conn
		p, ok := u.providers[conn.Platform]
		if !ok {
			continue
		}
		g.Go(func() error {
			u.revoke(ctx, p, conn)
			return nil
		})
	}
	return g.Wait()
}

func newStateToken() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
