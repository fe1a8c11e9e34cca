package tiktok

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crosspost/domain/apperror"
	"crosspost/domain/model"
	"crosspost/infrastructure/clients/platformhttp"
	"crosspost/infrastructure/logger"

	"github.com/google/go-querystring/query"
)

const (
	platformName = "tiktok"

	defaultAuthorizeURL = "https://www.tiktok.com/v2/auth/authorize/"
	defaultAPIBaseURL   = "https://open.tiktokapis.com"
	privacyPublic       = "PUBLIC_TO_EVERYONE"
)

var defaultScopes = []string{"user.info.basic", "video.upload", "video.publish"}

type Config struct {
	ClientKey    string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	HTTPClient   *http.Client
	UploadClient *http.Client

	AuthorizeURL string
	APIBaseURL   string
}

type Client struct {
	config Config
	http   *http.Client
	upload *http.Client
}

func NewTikTokClient(config Config) *Client {
	if len(config.Scopes) == 0 {
		config.Scopes = defaultScopes
	}
	if config.AuthorizeURL == "" {
		config.AuthorizeURL = defaultAuthorizeURL
	}
	if config.APIBaseURL == "" {
		config.APIBaseURL = defaultAPIBaseURL
	}
	config.APIBaseURL = strings.TrimRight(config.APIBaseURL, "/")
	c := &Client{config: config, http: config.HTTPClient, upload: config.UploadClient}
	if c.http == nil {
		c.http = platformhttp.NewClient(30 * time.Second)
	}
	if c.upload == nil {
		c.upload = platformhttp.NewClient(10 * time.Minute)
	}
	return c
}

func (c *Client) Platform() model.Platform { return model.PlatformTikTok }

func (c *Client) Configured() bool {
	return c.config.ClientKey != "" && c.config.ClientSecret != ""
}

type authorizeParams struct {
	ClientKey    string `url:"client_key"`
	RedirectURI  string `url:"redirect_uri"`
	ResponseType string `url:"response_type"`
	Scope        string `url:"scope"`
	State        string `url:"state"`
}

// AuthCodeURL builds the TikTok Login Kit authorize URL. Scopes are comma separated.
func (c *Client) AuthCodeURL(state string) string {
	v, _ := query.Values(authorizeParams{
		ClientKey:    c.config.ClientKey,
		RedirectURI:  c.config.RedirectURL,
		ResponseType: "code",
		Scope:        strings.Join(c.config.Scopes, ","),
		State:        state,
	})
	return c.config.AuthorizeURL + "?" + v.Encode()
}

type tokenForm struct {
	ClientKey    string `url:"client_key"`
	ClientSecret string `url:"client_secret"`
	GrantType    string `url:"grant_type,omitempty"`
	Code         string `url:"code,omitempty"`
	RedirectURI  string `url:"redirect_uri,omitempty"`
	RefreshToken string `url:"refresh_token,omitempty"`
	Token        string `url:"token,omitempty"`
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"expires_in"`
	OpenID           string `json:"open_id"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// apiError is the envelope error TikTok attaches to every v2 response; code "ok" means success.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e apiError) failed() bool {
	return e.Code != "" && e.Code != "ok"
}

func (c *Client) Exchange(ctx context.Context, code string) (*model.PlatformToken, error) {
	return c.token(ctx, "exchange code", tokenForm{
		GrantType:   "authorization_code",
		Code:        code,
		RedirectURI: c.config.RedirectURL,
	})
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*model.PlatformToken, error) {
	if refreshToken == "" {
		return nil, &apperror.VendorError{Platform: platformName, Op: "refresh token", Message: "no refresh token stored"}
	}
	return c.token(ctx, "refresh token", tokenForm{GrantType: "refresh_token", RefreshToken: refreshToken})
}

func (c *Client) token(ctx context.Context, op string, form tokenForm) (*model.PlatformToken, error) {
	form.ClientKey = c.config.ClientKey
	form.ClientSecret = c.config.ClientSecret

	var out tokenResponse
	status, raw, err := c.postForm(ctx, "/v2/oauth/token/", form, &out)
	if err != nil && status == 0 {
		return nil, fmt.Errorf("tiktok %s: %w", op, err)
	}
	if !platformhttp.Success(status) || out.Error != "" || out.AccessToken == "" {
		msg := out.ErrorDescription
		if msg == "" {
			msg = out.Error
		}
		if msg == "" {
			msg = platformhttp.Truncate(string(raw), 200)
		}
		return nil, &apperror.VendorError{Platform: platformName, Op: op, StatusCode: status, Message: msg}
	}

	tok := &model.PlatformToken{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		Scope:        out.Scope,
		OpenID:       out.OpenID,
	}
	if out.ExpiresIn > 0 {
		exp := time.Now().UTC().Add(time.Duration(out.ExpiresIn) * time.Second)
		tok.ExpiresAt = &exp
	}
	return tok, nil
}

func (c *Client) FetchIdentity(ctx context.Context, token *model.PlatformToken) (*model.PlatformIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.APIBaseURL+"/v2/user/info/?fields=open_id,display_name", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	var out struct {
		Data struct {
			User *struct {
				OpenID      string `json:"open_id"`
				DisplayName string `json:"display_name"`
			} `json:"user"`
		} `json:"data"`
		Error apiError `json:"error"`
	}
	status, raw, err := platformhttp.Do(c.http, req, &out)
	if err != nil && status == 0 {
		return nil, fmt.Errorf("tiktok fetch user: %w", err)
	}
	if !platformhttp.Success(status) || out.Error.failed() {
		return nil, &apperror.VendorError{Platform: platformName, Op: "fetch user", StatusCode: status, Message: errorMessage(out.Error, raw)}
	}
	if out.Data.User == nil {
		return nil, &apperror.IdentityError{Platform: platformName, Code: "tiktok_no_user", Reason: "No TikTok user found"}
	}
	openID := out.Data.User.OpenID
	if openID == "" {
		openID = token.OpenID
	}
	return &model.PlatformIdentity{UserID: openID, Username: out.Data.User.DisplayName}, nil
}

func (c *Client) Revoke(ctx context.Context, accessToken string) error {
	status, raw, err := c.postForm(ctx, "/v2/oauth/revoke/", tokenForm{
		ClientKey:    c.config.ClientKey,
		ClientSecret: c.config.ClientSecret,
		Token:        accessToken,
	}, nil)
	if err != nil {
		return fmt.Errorf("tiktok revoke token: %w", err)
	}
	if !platformhttp.Success(status) {
		return &apperror.VendorError{Platform: platformName, Op: "revoke token", StatusCode: status, Message: platformhttp.Truncate(string(raw), 200)}
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, path string, form tokenForm, out interface{}) (int, []byte, error) {
	v, err := query.Values(form)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.APIBaseURL+path, strings.NewReader(v.Encode()))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return platformhttp.Do(c.http, req, out)
}

type initRequest struct {
	PostInfo   postInfo   `json:"post_info"`
	SourceInfo sourceInfo `json:"source_info"`
}

type postInfo struct {
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	PrivacyLevel string `json:"privacy_level"`
}

type sourceInfo struct {
	Source          string `json:"source"`
	VideoSize       int64  `json:"video_size"`
	ChunkSize       int64  `json:"chunk_size"`
	TotalChunkCount int    `json:"total_chunk_count"`
}

// Publish runs init, a single-chunk PUT of the video bytes and one status read.
// The share URL is often absent while TikTok is still processing; that is not an error.
func (c *Client) Publish(ctx context.Context, in model.PublishInput) (*model.PublishResult, error) {
	publishID, uploadURL, err := c.initUpload(ctx, in)
	if err != nil {
		return nil, err
	}

	in.Progress(model.PostStatusUploading)
	if err := c.putVideo(ctx, in, uploadURL); err != nil {
		return nil, err
	}

	in.Progress(model.PostStatusProcessing)
	return &model.PublishResult{ID: publishID, URL: c.shareURL(ctx, in.Connection.AccessToken, publishID)}, nil
}

func (c *Client) initUpload(ctx context.Context, in model.PublishInput) (string, string, error) {
	size := in.Video.FileSize
	body := initRequest{
		PostInfo: postInfo{
			Title:        in.Meta.Title,
			Description:  in.Meta.Description,
			PrivacyLevel: privacyPublic,
		},
		SourceInfo: sourceInfo{Source: "FILE_UPLOAD", VideoSize: size, ChunkSize: size, TotalChunkCount: 1},
	}
	req, err := platformhttp.JSONRequest(ctx, http.MethodPost, c.config.APIBaseURL+"/v2/post/publish/video/init/", body)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+in.Connection.AccessToken)

	var out struct {
		Data struct {
			PublishID string `json:"publish_id"`
			UploadURL string `json:"upload_url"`
		} `json:"data"`
		Error apiError `json:"error"`
	}
	status, raw, err := platformhttp.Do(c.http, req, &out)
	if err != nil && status == 0 {
		return "", "", fmt.Errorf("tiktok init upload: %w", err)
	}
	if !platformhttp.Success(status) || out.Error.failed() {
		return "", "", &apperror.VendorError{Platform: platformName, Op: "init upload", StatusCode: status, Message: errorMessage(out.Error, raw)}
	}
	if out.Data.UploadURL == "" || out.Data.PublishID == "" {
		return "", "", &apperror.VendorError{Platform: platformName, Op: "init upload", StatusCode: status, Message: "response missing upload_url or publish_id"}
	}
	return out.Data.PublishID, out.Data.UploadURL, nil
}

func (c *Client) putVideo(ctx context.Context, in model.PublishInput, uploadURL string) error {
	src, err := platformhttp.OpenSource(ctx, c.upload, platformName, in.SignedURL)
	if err != nil {
		return err
	}
	defer src.Body.Close()

	size := src.Size
	if size < 0 {
		size = in.Video.FileSize
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, src.Body)
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", mimeType(in.Video))
	if size > 0 {
		req.Header.Set("Content-Range", "bytes 0-"+strconv.FormatInt(size-1, 10)+"/"+strconv.FormatInt(size, 10))
	}
	status, raw, err := platformhttp.Do(c.upload, req, nil)
	if err != nil {
		return fmt.Errorf("tiktok upload video: %w", err)
	}
	if !platformhttp.Success(status) {
		return &apperror.VendorError{Platform: platformName, Op: "upload video", StatusCode: status, Message: platformhttp.Truncate(string(raw), 200)}
	}
	return nil
}

func (c *Client) shareURL(ctx context.Context, accessToken, publishID string) string {
	lg := logger.GetLogger().WithField("publish_id", publishID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.APIBaseURL+"/v2/post/publish/status/"+url.PathEscape(publishID)+"/", nil)
	if err != nil {
		lg.WithError(err).Warn("tiktok status request")
		return ""
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var out struct {
		Data struct {
			Status   string `json:"status"`
			ShareURL string `json:"share_url"`
		} `json:"data"`
	}
	status, _, err := platformhttp.Do(c.http, req, &out)
	if err != nil || !platformhttp.Success(status) {
		lg.WithField("status", status).WithError(err).Warn("tiktok publish status unavailable")
		return ""
	}
	return out.Data.ShareURL
}

func mimeType(v *model.Video) string {
	if v.MimeType == "" {
		return "video/mp4"
	}
	return v.MimeType
}

func errorMessage(e apiError, raw []byte) string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return platformhttp.Truncate(strings.TrimSpace(string(raw)), 200)
}
