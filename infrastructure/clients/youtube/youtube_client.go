package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crosspost/domain/apperror"
	"crosspost/domain/model"
	"crosspost/infrastructure/clients/platformhttp"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	platformName = "youtube"

	defaultRevokeURL  = "https://oauth2.googleapis.com/revoke"
	defaultUploadBase = "https://www.googleapis.com/upload"
	watchURLPrefix    = "https://www.youtube.com/watch?v="
)

// Config represents YouTube client configuration. Endpoint fields are only
// overridden in tests.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// HTTPClient serves OAuth and metadata calls, UploadClient serves byte transfers.
	HTTPClient   *http.Client
	UploadClient *http.Client

	Endpoint      oauth2.Endpoint
	RevokeURL     string
	APIBaseURL    string
	UploadBaseURL string
}

// Client implements the YouTube side of connect and publish.
type Client struct {
	oauthConfig *oauth2.Config
	http        *http.Client
	upload      *http.Client
	revokeURL   string
	apiBase     string
	uploadBase  string
}

// NewYouTubeClient creates a new YouTube API client
func NewYouTubeClient(config Config) *Client {
	endpoint := config.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = google.Endpoint
	}
	scopes := config.Scopes
	if len(scopes) == 0 {
		scopes = []string{youtube.YoutubeUploadScope, youtube.YoutubeReadonlyScope}
	}
	c := &Client{
		oauthConfig: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		http:       config.HTTPClient,
		upload:     config.UploadClient,
		revokeURL:  config.RevokeURL,
		apiBase:    config.APIBaseURL,
		uploadBase: strings.TrimRight(config.UploadBaseURL, "/"),
	}
	if c.http == nil {
		c.http = platformhttp.NewClient(30 * time.Second)
	}
	if c.upload == nil {
		c.upload = platformhttp.NewClient(10 * time.Minute)
	}
	if c.revokeURL == "" {
		c.revokeURL = defaultRevokeURL
	}
	if c.uploadBase == "" {
		c.uploadBase = defaultUploadBase
	}
	return c
}

func (c *Client) Platform() model.Platform { return model.PlatformYouTube }

func (c *Client) Configured() bool {
	return c.oauthConfig.ClientID != "" && c.oauthConfig.ClientSecret != ""
}

// AuthCodeURL requests offline access and forces the consent screen so Google
// always returns a refresh token.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http)
}

func (c *Client) Exchange(ctx context.Context, code string) (*model.PlatformToken, error) {
	tok, err := c.oauthConfig.Exchange(c.oauthContext(ctx), code)
	if err != nil {
		return nil, oauthError("exchange code", err)
	}
	return toPlatformToken(tok), nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*model.PlatformToken, error) {
	if refreshToken == "" {
		return nil, &apperror.VendorError{Platform: platformName, Op: "refresh token", Message: "no refresh token stored"}
	}
	tok, err := c.oauthConfig.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, oauthError("refresh token", err)
	}
	out := toPlatformToken(tok)
	if out.RefreshToken == "" {
		out.RefreshToken = refreshToken
	}
	return out, nil
}

// FetchIdentity looks up the channel owned by the token's Google account.
func (c *Client) FetchIdentity(ctx context.Context, token *model.PlatformToken) (*model.PlatformIdentity, error) {
	service, err := c.service(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}
	resp, err := service.Channels.List([]string{"snippet"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return nil, googleError("fetch channel", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Id == "" {
		return nil, &apperror.IdentityError{Platform: platformName, Code: "youtube_no_channel", Reason: "No YouTube channel found"}
	}
	channel := resp.Items[0]
	identity := &model.PlatformIdentity{UserID: channel.Id}
	if channel.Snippet != nil {
		identity.Username = channel.Snippet.Title
	}
	return identity, nil
}

func (c *Client) service(ctx context.Context, accessToken string) (*youtube.Service, error) {
	httpClient := oauth2.NewClient(c.oauthContext(ctx), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.apiBase != "" {
		opts = append(opts, option.WithEndpoint(c.apiBase))
	}
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}
	return service, nil
}

// Revoke invalidates the token at Google. Both access and refresh tokens are accepted.
func (c *Client) Revoke(ctx context.Context, accessToken string) error {
	u := c.revokeURL + "?" + url.Values{"token": {accessToken}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	status, raw, err := platformhttp.Do(c.http, req, nil)
	if err != nil {
		return err
	}
	if !platformhttp.Success(status) {
		return &apperror.VendorError{Platform: platformName, Op: "revoke token", StatusCode: status, Message: vendorMessage(raw)}
	}
	return nil
}

// Publish runs the resumable upload protocol: open a session with the video
// metadata, then PUT the bytes to the returned location.
func (c *Client) Publish(ctx context.Context, in model.PublishInput) (*model.PublishResult, error) {
	mimeType := in.Video.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	location, err := c.createUploadSession(ctx, in, mimeType)
	if err != nil {
		return nil, err
	}

	in.Progress(model.PostStatusUploading)
	src, err := platformhttp.OpenSource(ctx, c.upload, platformName, in.SignedURL)
	if err != nil {
		return nil, err
	}
	defer src.Body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, location, src.Body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mimeType)
	if src.Size >= 0 {
		req.ContentLength = src.Size
	}
	var uploaded youtube.Video
	status, raw, err := platformhttp.Do(c.upload, req, &uploaded)
	if err != nil && status == 0 {
		return nil, fmt.Errorf("youtube upload video: %w", err)
	}
	if !platformhttp.Success(status) {
		return nil, &apperror.VendorError{Platform: platformName, Op: "upload video", StatusCode: status, Message: vendorMessage(raw)}
	}
	if err != nil {
		return nil, &apperror.VendorError{Platform: platformName, Op: "upload video", StatusCode: status, Message: err.Error()}
	}
	if uploaded.Id == "" {
		return nil, &apperror.VendorError{Platform: platformName, Op: "upload video", StatusCode: status, Message: "response missing video id"}
	}
	return &model.PublishResult{ID: uploaded.Id, URL: watchURLPrefix + uploaded.Id}, nil
}

func (c *Client) createUploadSession(ctx context.Context, in model.PublishInput, mimeType string) (string, error) {
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       in.Meta.Title,
			Description: in.Meta.Description,
			Tags:        in.Meta.Tags,
		},
		Status: &youtube.VideoStatus{PrivacyStatus: "public"},
	}
	u := c.uploadBase + "/youtube/v3/videos?" + url.Values{
		"uploadType": {"resumable"},
		"part":       {"snippet,status"},
	}.Encode()
	req, err := platformhttp.JSONRequest(ctx, http.MethodPost, u, video)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+in.Connection.AccessToken)
	req.Header.Set("X-Upload-Content-Type", mimeType)
	if in.Video.FileSize > 0 {
		req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(in.Video.FileSize, 10))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("youtube create upload session: %w", err)
	}
	defer resp.Body.Close()
	if !platformhttp.Success(resp.StatusCode) {
		return "", &apperror.VendorError{Platform: platformName, Op: "create upload session", StatusCode: resp.StatusCode, Message: vendorMessage([]byte(platformhttp.ReadBody(resp.Body)))}
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", &apperror.VendorError{Platform: platformName, Op: "create upload session", StatusCode: resp.StatusCode, Message: "missing upload location"}
	}
	return location, nil
}

func toPlatformToken(tok *oauth2.Token) *model.PlatformToken {
	out := &model.PlatformToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		out.ExpiresAt = &exp
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		out.Scope = scope
	}
	return out
}

func oauthError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		msg := re.ErrorCode
		if re.ErrorDescription != "" {
			msg = msg + ": " + re.ErrorDescription
		}
		if msg == "" {
			msg = platformhttp.Truncate(string(re.Body), 200)
		}
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return &apperror.VendorError{Platform: platformName, Op: op, StatusCode: status, Message: msg}
	}
	return fmt.Errorf("youtube %s: %w", op, err)
}

func googleError(op string, err error) error {
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		return &apperror.VendorError{Platform: platformName, Op: op, StatusCode: ge.Code, Message: ge.Message}
	}
	return fmt.Errorf("youtube %s: %w", op, err)
}

// vendorMessage extracts error.message from a Google error body.
func vendorMessage(raw []byte) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	return platformhttp.Truncate(strings.TrimSpace(string(raw)), 200)
}
