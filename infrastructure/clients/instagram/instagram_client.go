// Package instagram publishes Reels through the Instagram Graph API. Accounts
// are reached through the Facebook Page they are linked to.
package instagram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crosspost/domain/apperror"
	"crosspost/domain/model"
	"crosspost/infrastructure/clients/platformhttp"
	"crosspost/infrastructure/logger"

	"github.com/google/go-querystring/query"
)

const (
	platformName = "instagram"

	defaultDialogURL = "https://www.facebook.com/v18.0/dialog/oauth"
	defaultGraphURL  = "https://graph.facebook.com/v18.0"
	permalinkPrefix  = "https://www.instagram.com/p/"

	defaultScope           = "instagram_basic,instagram_content_publish"
	longLivedTokenLifetime = 60 * 24 * time.Hour

	statusFinished = "FINISHED"
	statusError    = "ERROR"
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	HTTPClient *http.Client

	DialogURL string
	GraphURL  string

	// PollInterval and PollAttempts bound the wait for container processing.
	PollInterval time.Duration
	PollAttempts int
}

type Client struct {
	config Config
	http   *http.Client
	wait   func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

func NewInstagramClient(config Config) *Client {
	if config.DialogURL == "" {
		config.DialogURL = defaultDialogURL
	}
	if config.GraphURL == "" {
		config.GraphURL = defaultGraphURL
	}
	config.GraphURL = strings.TrimRight(config.GraphURL, "/")
	if config.PollInterval <= 0 {
		config.PollInterval = 10 * time.Second
	}
	if config.PollAttempts <= 0 {
		config.PollAttempts = 30
	}
	c := &Client{config: config, http: config.HTTPClient, wait: sleep, now: time.Now}
	if c.http == nil {
		c.http = platformhttp.NewClient(30 * time.Second)
	}
	return c
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) Platform() model.Platform { return model.PlatformInstagram }

func (c *Client) Configured() bool {
	return c.config.ClientID != "" && c.config.ClientSecret != ""
}

type dialogParams struct {
	ClientID     string `url:"client_id"`
	RedirectURI  string `url:"redirect_uri"`
	Scope        string `url:"scope"`
	ResponseType string `url:"response_type"`
	State        string `url:"state"`
}

func (c *Client) AuthCodeURL(state string) string {
	scope := defaultScope
	if len(c.config.Scopes) > 0 {
		scope = strings.Join(c.config.Scopes, ",")
	}
	v, _ := query.Values(dialogParams{
		ClientID:     c.config.ClientID,
		RedirectURI:  c.config.RedirectURL,
		Scope:        scope,
		ResponseType: "code",
		State:        state,
	})
	return c.config.DialogURL + "?" + v.Encode()
}

type tokenParams struct {
	ClientID        string `url:"client_id"`
	ClientSecret    string `url:"client_secret"`
	RedirectURI     string `url:"redirect_uri,omitempty"`
	Code            string `url:"code,omitempty"`
	GrantType       string `url:"grant_type,omitempty"`
	FBExchangeToken string `url:"fb_exchange_token,omitempty"`
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	Error       *graphError `json:"error"`
}

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// Exchange trades the code for a short-lived user token, then upgrades it to a
// long-lived one. The Page token used for publishing comes from FetchIdentity.
func (c *Client) Exchange(ctx context.Context, code string) (*model.PlatformToken, error) {
	short, err := c.accessToken(ctx, "exchange code", tokenParams{RedirectURI: c.config.RedirectURL, Code: code})
	if err != nil {
		return nil, err
	}
	return c.longLived(ctx, short.AccessToken)
}

// Refresh extends a long-lived token by exchanging it again.
func (c *Client) Refresh(ctx context.Context, token string) (*model.PlatformToken, error) {
	if token == "" {
		return nil, &apperror.VendorError{Platform: platformName, Op: "refresh token", Message: "no token to extend"}
	}
	return c.longLived(ctx, token)
}

func (c *Client) longLived(ctx context.Context, shortToken string) (*model.PlatformToken, error) {
	long, err := c.accessToken(ctx, "exchange long-lived token", tokenParams{GrantType: "fb_exchange_token", FBExchangeToken: shortToken})
	if err != nil {
		return nil, err
	}
	exp := c.now().UTC().Add(longLivedTokenLifetime)
	return &model.PlatformToken{AccessToken: long.AccessToken, ExpiresAt: &exp, Scope: c.scope()}, nil
}

func (c *Client) scope() string {
	if len(c.config.Scopes) > 0 {
		return strings.Join(c.config.Scopes, ",")
	}
	return defaultScope
}

func (c *Client) accessToken(ctx context.Context, op string, params tokenParams) (*tokenResponse, error) {
	params.ClientID = c.config.ClientID
	params.ClientSecret = c.config.ClientSecret
	v, err := query.Values(params)
	if err != nil {
		return nil, err
	}
	var out tokenResponse
	status, raw, err := c.get(ctx, "/oauth/access_token", v, &out)
	if err != nil && status == 0 {
		return nil, fmt.Errorf("instagram %s: %w", op, err)
	}
	if !platformhttp.Success(status) || out.Error != nil || out.AccessToken == "" {
		return nil, &apperror.VendorError{Platform: platformName, Op: op, StatusCode: status, Message: graphMessage(out.Error, raw)}
	}
	return &out, nil
}

// FetchIdentity walks user token -> first Page -> linked Instagram Business
// account. The returned AccessToken is the Page token, which is what posting uses.
func (c *Client) FetchIdentity(ctx context.Context, token *model.PlatformToken) (*model.PlatformIdentity, error) {
	var pages struct {
		Data []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			AccessToken string `json:"access_token"`
		} `json:"data"`
		Error *graphError `json:"error"`
	}
	if err := c.getJSON(ctx, "fetch pages", "/me/accounts", url.Values{"access_token": {token.AccessToken}}, &pages, func() *graphError { return pages.Error }); err != nil {
		return nil, err
	}
	if len(pages.Data) == 0 {
		return nil, &apperror.IdentityError{Platform: platformName, Code: "instagram_no_page", Reason: "No Facebook page found. Instagram Business account requires a Facebook page."}
	}
	page := pages.Data[0]

	var account struct {
		BusinessAccount *struct {
			ID string `json:"id"`
		} `json:"instagram_business_account"`
		Error *graphError `json:"error"`
	}
	if err := c.getJSON(ctx, "fetch business account", "/"+url.PathEscape(page.ID), url.Values{
		"fields":       {"instagram_business_account"},
		"access_token": {page.AccessToken},
	}, &account, func() *graphError { return account.Error }); err != nil {
		return nil, err
	}
	if account.BusinessAccount == nil || account.BusinessAccount.ID == "" {
		return nil, &apperror.IdentityError{Platform: platformName, Code: "instagram_no_business_account", Reason: "No Instagram Business account linked to this Facebook page"}
	}
	igID := account.BusinessAccount.ID

	var user struct {
		Username string      `json:"username"`
		Name     string      `json:"name"`
		Error    *graphError `json:"error"`
	}
	if err := c.getJSON(ctx, "fetch account", "/"+url.PathEscape(igID), url.Values{
		"fields":       {"username,name"},
		"access_token": {page.AccessToken},
	}, &user, func() *graphError { return user.Error }); err != nil {
		return nil, err
	}
	username := user.Username
	if username == "" {
		username = user.Name
	}
	return &model.PlatformIdentity{UserID: igID, Username: username, AccessToken: page.AccessToken}, nil
}

// Revoke is a no-op: Page tokens are invalidated when the user removes the app
// from their Facebook settings.
func (c *Client) Revoke(ctx context.Context, accessToken string) error {
	return nil
}

// Publish creates a REELS container from the signed URL, waits for it to
// finish processing and publishes it. The signed URL must be publicly fetchable.
func (c *Client) Publish(ctx context.Context, in model.PublishInput) (*model.PublishResult, error) {
	igID := in.Connection.PlatformUserID
	token := in.Connection.AccessToken

	var container struct {
		ID    string      `json:"id"`
		Error *graphError `json:"error"`
	}
	status, raw, err := c.postJSON(ctx, "/"+url.PathEscape(igID)+"/media", map[string]string{
		"media_type":   "REELS",
		"video_url":    in.SignedURL,
		"caption":      Caption(in.Meta),
		"access_token": token,
	}, &container)
	if err != nil && status == 0 {
		return nil, fmt.Errorf("instagram create media container: %w", err)
	}
	if !platformhttp.Success(status) || container.Error != nil || container.ID == "" {
		return nil, &apperror.VendorError{Platform: platformName, Op: "create media container", StatusCode: status, Message: graphMessage(container.Error, raw)}
	}

	in.Progress(model.PostStatusProcessing)
	if err := c.awaitContainer(ctx, container.ID, token); err != nil {
		return nil, err
	}

	var published struct {
		ID    string      `json:"id"`
		Error *graphError `json:"error"`
	}
	status, raw, err = c.postJSON(ctx, "/"+url.PathEscape(igID)+"/media_publish", map[string]string{
		"creation_id":  container.ID,
		"access_token": token,
	}, &published)
	if err != nil && status == 0 {
		return nil, fmt.Errorf("instagram publish media: %w", err)
	}
	if !platformhttp.Success(status) || published.Error != nil || published.ID == "" {
		return nil, &apperror.VendorError{Platform: platformName, Op: "publish media", StatusCode: status, Message: graphMessage(published.Error, raw)}
	}
	return &model.PublishResult{ID: published.ID, URL: permalinkPrefix + published.ID + "/"}, nil
}

// awaitContainer waits one interval before every status read, so giving up
// takes exactly PollAttempts * PollInterval.
func (c *Client) awaitContainer(ctx context.Context, containerID, token string) error {
	lg := logger.GetLogger().WithField("container_id", containerID)
	for attempt := 1; attempt <= c.config.PollAttempts; attempt++ {
		if err := c.wait(ctx, c.config.PollInterval); err != nil {
			return fmt.Errorf("instagram wait for media processing: %w", err)
		}

		var out struct {
			StatusCode string      `json:"status_code"`
			Error      *graphError `json:"error"`
		}
		status, raw, err := c.get(ctx, "/"+url.PathEscape(containerID), url.Values{
			"fields":       {"status_code"},
			"access_token": {token},
		}, &out)
		if err != nil || !platformhttp.Success(status) || out.Error != nil {
			lg.WithFields(map[string]interface{}{"attempt": attempt, "status": status}).
				Warnf("instagram container status read failed: %v %s", err, graphMessage(out.Error, raw))
			continue
		}

		switch out.StatusCode {
		case statusFinished:
			return nil
		case statusError:
			return &apperror.VendorError{Platform: platformName, Op: "process media", Message: "Instagram media processing failed"}
		}
	}
	return &apperror.TimeoutError{Platform: platformName, Op: "media processing", Attempts: c.config.PollAttempts, Interval: c.config.PollInterval}
}

// Caption joins title, description and tags the way Instagram renders them.
func Caption(meta model.PublishMeta) string {
	parts := []string{meta.Title}
	if meta.Description != "" {
		parts = append(parts, meta.Description)
	}
	if len(meta.Tags) > 0 {
		tags := make([]string, 0, len(meta.Tags))
		for _, t := range meta.Tags {
			t = strings.TrimPrefix(strings.TrimSpace(t), "#")
			if t != "" {
				tags = append(tags, "#"+t)
			}
		}
		if len(tags) > 0 {
			parts = append(parts, strings.Join(tags, " "))
		}
	}
	return strings.Join(parts, "\n\n")
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.GraphURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return 0, nil, err
	}
	return platformhttp.Do(c.http, req, out)
}

func (c *Client) getJSON(ctx context.Context, op, path string, params url.Values, out interface{}, graphErr func() *graphError) error {
	status, raw, err := c.get(ctx, path, params, out)
	if err != nil && status == 0 {
		return fmt.Errorf("instagram %s: %w", op, err)
	}
	if !platformhttp.Success(status) || err != nil || graphErr() != nil {
		return &apperror.VendorError{Platform: platformName, Op: op, StatusCode: status, Message: graphMessage(graphErr(), raw)}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}, out interface{}) (int, []byte, error) {
	req, err := platformhttp.JSONRequest(ctx, http.MethodPost, c.config.GraphURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	return platformhttp.Do(c.http, req, out)
}

func graphMessage(e *graphError, raw []byte) string {
	if e != nil && e.Message != "" {
		return e.Message
	}
	return platformhttp.Truncate(strings.TrimSpace(string(raw)), 200)
}
