package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"crosspost/domain/apperror"
	"crosspost/domain/model"
)

type memConnections struct {
	mu      sync.Mutex
	rows    map[string]*model.Connection
	seq     int64
	upserts int
}

func newMemConnections() *memConnections {
	return &memConnections{rows: map[string]*model.Connection{}}
}

func connKey(userID string, p model.Platform) string { return userID + "|" + string(p) }

func (m *memConnections) Upsert(ctx context.Context, c *model.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	k := connKey(c.UserID, c.Platform)
	if existing, ok := m.rows[k]; ok {
		c.ID, c.CreatedAt = existing.ID, existing.CreatedAt
	} else {
		m.seq++
		c.ID, c.CreatedAt = m.seq, time.Now().UTC()
	}
	cp := *c
	m.rows[k] = &cp
	return nil
}

func (m *memConnections) GetActive(ctx context.Context, userID string, platform model.Platform) (*model.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[connKey(userID, platform)]
	if !ok || !c.IsActive {
		return nil, &apperror.NotFoundError{Resource: "connection", ID: string(platform)}
	}
	cp := *c
	return &cp, nil
}

func (m *memConnections) ListByUser(ctx context.Context, userID string) ([]*model.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Connection
	for _, c := range m.rows {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out, nil
}

func (m *memConnections) Delete(ctx context.Context, userID string, platform model.Platform) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := connKey(userID, platform)
	_, ok := m.rows[k]
	delete(m.rows, k)
	return ok, nil
}

func (m *memConnections) DeleteByUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, c := range m.rows {
		if c.UserID == userID {
			delete(m.rows, k)
		}
	}
	return nil
}

func (m *memConnections) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memStates struct {
	mu     sync.Mutex
	rows   map[string]*model.OAuthState
	sweeps int
}

func newMemStates() *memStates { return &memStates{rows: map[string]*model.OAuthState{}} }

func (m *memStates) Create(ctx context.Context, s *model.OAuthState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.rows[s.StateToken] = &cp
	return nil
}

func (m *memStates) Consume(ctx context.Context, token string, platform model.Platform) (*model.OAuthState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[token]
	if !ok || s.Platform != platform {
		return nil, &apperror.NotFoundError{Resource: "oauth state", ID: token}
	}
	delete(m.rows, token)
	return s, nil
}

func (m *memStates) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps++
	var n int64
	for k, s := range m.rows {
		if s.Expired(time.Now()) {
			delete(m.rows, k)
			n++
		}
	}
	return n, nil
}

func (m *memStates) only() *model.OAuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		return s
	}
	return nil
}

func (m *memStates) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memVideos struct {
	mu        sync.Mutex
	rows      map[string]*model.Video
	createErr error
}

func newMemVideos(videos ...*model.Video) *memVideos {
	m := &memVideos{rows: map[string]*model.Video{}}
	for _, v := range videos {
		m.rows[v.ID] = v
	}
	return m
}

func (m *memVideos) Create(ctx context.Context, v *model.Video) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v.CreatedAt = time.Now().UTC()
	m.rows[v.ID] = v
	return nil
}

func (m *memVideos) GetByID(ctx context.Context, id, userID string) (*model.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.rows[id]
	if !ok || v.UserID != userID {
		return nil, &apperror.NotFoundError{Resource: "video", ID: id}
	}
	return v, nil
}

func (m *memVideos) ListByUser(ctx context.Context, userID string) ([]*model.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Video
	for _, v := range m.rows {
		if v.UserID == userID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memVideos) Delete(ctx context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.rows[id]
	if !ok || v.UserID != userID {
		return &apperror.NotFoundError{Resource: "video", ID: id}
	}
	delete(m.rows, id)
	return nil
}

func (m *memVideos) DeleteByUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.rows {
		if v.UserID == userID {
			delete(m.rows, k)
		}
	}
	return nil
}

// memPosts mirrors the SQL guards: terminal rows are never rewritten and
// retry_count counts earlier failures for the same video and platform.
type memPosts struct {
	mu      sync.Mutex
	rows    map[string]*model.Post
	order   []string
	history []model.PostStatus
	// rejectTerminal, when set, can fail MarkPublished and MarkFailed.
	rejectTerminal func(p *model.Post) error
	terminalWrites int
}

func newMemPosts() *memPosts { return &memPosts{rows: map[string]*model.Post{}} }

func (m *memPosts) Create(ctx context.Context, p *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	m.rows[p.ID] = &cp
	m.order = append(m.order, p.ID)
	m.history = append(m.history, p.Status)
	return nil
}

func (m *memPosts) guarded(id, userID string) (*model.Post, error) {
	p, ok := m.rows[id]
	if !ok || p.UserID != userID || p.Status.Terminal() {
		return nil, apperror.ErrInvalidTransition
	}
	return p, nil
}

func (m *memPosts) UpdateStatus(ctx context.Context, id, userID string, status model.PostStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.guarded(id, userID)
	if err != nil {
		return err
	}
	p.Status = status
	m.history = append(m.history, status)
	return nil
}

func (m *memPosts) rejected(in *model.Post) error {
	m.terminalWrites++
	if m.rejectTerminal == nil {
		return nil
	}
	return m.rejectTerminal(in)
}

func (m *memPosts) MarkPublished(ctx context.Context, in *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.rejected(in); err != nil {
		return err
	}
	p, err := m.guarded(in.ID, in.UserID)
	if err != nil {
		return err
	}
	p.Status = model.PostStatusPublished
	p.PlatformPostID, p.PlatformURL, p.PostedAt = in.PlatformPostID, in.PlatformURL, in.PostedAt
	m.history = append(m.history, p.Status)
	return nil
}

func (m *memPosts) MarkFailed(ctx context.Context, in *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.rejected(in); err != nil {
		return err
	}
	p, err := m.guarded(in.ID, in.UserID)
	if err != nil {
		return err
	}
	retries := 0
	for _, other := range m.rows {
		if other.ID != p.ID && other.UserID == p.UserID && other.VideoID == p.VideoID &&
			other.Platform == p.Platform && other.Status == model.PostStatusFailed {
			retries++
		}
	}
	p.Status = model.PostStatusFailed
	p.ErrorMessage = in.ErrorMessage
	p.RetryCount = retries
	in.RetryCount = retries
	m.history = append(m.history, p.Status)
	return nil
}

func (m *memPosts) List(ctx context.Context, userID string, filter model.PostFilter) ([]*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Post
	for i := len(m.order) - 1; i >= 0; i-- {
		p := m.rows[m.order[i]]
		if p == nil || p.UserID != userID {
			continue
		}
		if filter.VideoID != "" && p.VideoID != filter.VideoID {
			continue
		}
		if filter.Platform != "" && p.Platform != filter.Platform {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memPosts) DeleteByUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, p := range m.rows {
		if p.UserID == userID {
			delete(m.rows, k)
		}
	}
	return nil
}

func (m *memPosts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memPosts) reject(fn func(p *model.Post) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectTerminal = fn
}

func (m *memPosts) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminalWrites
}

func (m *memPosts) get(id string) *model.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.rows[id]
	return &cp
}

type memStorage struct {
	mu         sync.Mutex
	objects    map[string][]byte
	removed    []string
	baseURL    string
	putErr     error
	signErr    error
	lastSigned time.Duration
}

func newMemStorage(baseURL string) *memStorage {
	return &memStorage{objects: map[string][]byte{}, baseURL: baseURL}
}

func (m *memStorage) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = buf.Bytes()
	return nil
}

func (m *memStorage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.signErr != nil {
		return "", m.signErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSigned = ttl
	return m.baseURL + "/" + key, nil
}

func (m *memStorage) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.removed = append(m.removed, key)
	return nil
}

type memAudit struct {
	mu   sync.Mutex
	rows []*model.PostAudit
}

func (m *memAudit) Append(ctx context.Context, a *model.PostAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, a)
	return nil
}

func (m *memAudit) ListByPost(ctx context.Context, postID, userID string) ([]*model.PostAudit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PostAudit
	for _, a := range m.rows {
		if a.PostID == postID && a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []model.PostEvent
	err    error
}

func (r *recordingEvents) PublishPostEvent(ctx context.Context, evt model.PostEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return r.err
}

func (r *recordingEvents) statuses(postID string) []model.PostStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.PostStatus
	for _, e := range r.events {
		if e.PostID == postID {
			out = append(out, e.Status)
		}
	}
	return out
}

// MockPlatformOAuth is a testify mock of one vendor's OAuth endpoints.
type MockPlatformOAuth struct {
	mock.Mock
	platform   model.Platform
	configured bool
}

func newMockOAuth(p model.Platform) *MockPlatformOAuth {
	return &MockPlatformOAuth{platform: p, configured: true}
}

func (m *MockPlatformOAuth) Platform() model.Platform { return m.platform }
func (m *MockPlatformOAuth) Configured() bool         { return m.configured }

func (m *MockPlatformOAuth) AuthCodeURL(state string) string {
	return "https://vendor.test/" + string(m.platform) + "/authorize?state=" + state
}

func (m *MockPlatformOAuth) Exchange(ctx context.Context, code string) (*model.PlatformToken, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PlatformToken), args.Error(1)
}

func (m *MockPlatformOAuth) FetchIdentity(ctx context.Context, token *model.PlatformToken) (*model.PlatformIdentity, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PlatformIdentity), args.Error(1)
}

func (m *MockPlatformOAuth) Refresh(ctx context.Context, refreshToken string) (*model.PlatformToken, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PlatformToken), args.Error(1)
}

func (m *MockPlatformOAuth) Revoke(ctx context.Context, accessToken string) error {
	return m.Called(ctx, accessToken).Error(0)
}

// funcPublisher adapts a function to IPlatformPublisher.
type funcPublisher struct {
	platform model.Platform
	fn       func(ctx context.Context, in model.PublishInput) (*model.PublishResult, error)
}

func (f *funcPublisher) Platform() model.Platform { return f.platform }

func (f *funcPublisher) Publish(ctx context.Context, in model.PublishInput) (*model.PublishResult, error) {
	return f.fn(ctx, in)
}

func okPublisher(p model.Platform, id, url string) *funcPublisher {
	return &funcPublisher{platform: p, fn: func(ctx context.Context, in model.PublishInput) (*model.PublishResult, error) {
		return &model.PublishResult{ID: id, URL: url}, nil
	}}
}

func failingPublisher(p model.Platform, msg string) *funcPublisher {
	return &funcPublisher{platform: p, fn: func(ctx context.Context, in model.PublishInput) (*model.PublishResult, error) {
		return nil, &apperror.VendorError{Platform: string(p), Op: "init upload", StatusCode: 500, Message: msg}
	}}
}

var errBoom = errors.New("boom")
