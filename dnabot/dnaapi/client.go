package dnaapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second

	rsaKeyTTL   = 24 * time.Hour
	postListTTL = time.Hour
)

// Client wraps every upstream endpoint. All responses come back as an
// Envelope; transport failures after the retry budget become synthetic
// failure envelopes so call sites only ever check IsSuccess.
type Client struct {
	http       *http.Client
	baseURL    string
	profile    HeaderProfile
	maxRetries int
	retryDelay time.Duration

	// rsaCache holds the fetched RSA public key for a day; annCache holds the
	// last announcement feed; postCache holds one post list per token for an
	// hour. All small fixed-capacity caches owned by the client, not package
	// globals.
	rsaCache  *lru.Cache
	annCache  *lru.Cache
	postCache *lru.Cache
}

type cacheEntry struct {
	value   any
	expires time.Time
}

// Option configures a Client.
type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

func WithProfile(p HeaderProfile) Option {
	return func(c *Client) { c.profile = p }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Timeout: defaultTimeout},
		baseURL:    DefaultBaseURL,
		profile:    ProfileIOS,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
	c.rsaCache, _ = lru.New(2)
	c.annCache, _ = lru.New(2)
	c.postCache, _ = lru.New(32)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) headers(opts HeaderOptions) http.Header {
	if opts.Profile == "" {
		opts.Profile = c.profile
	}
	return BuildHeaders(opts)
}

// do performs one upstream call with retries. Transport errors and non-JSON
// bodies are retried with exponential backoff; after the budget is exhausted
// a synthetic failure envelope is returned instead of an error.
func (c *Client) do(ctx context.Context, method, path string, header http.Header, body string) *Envelope {
	reqURL := path
	if !strings.HasPrefix(path, "http") {
		reqURL = c.baseURL + path
	}

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		env, err := c.doOnce(ctx, method, reqURL, header, body)
		if err == nil {
			return env
		}

		slog.Error("Upstream request failed",
			slog.String("type", "api"),
			slog.String("url", reqURL),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err),
		)

		delay := c.retryDelay * (1 << attempt)
		select {
		case <-ctx.Done():
			return ErrEnvelope("请求服务器失败，已达最大重试次数")
		case <-time.After(delay):
		}
	}
	return ErrEnvelope("请求服务器失败，已达最大重试次数")
}

func (c *Client) doOnce(ctx context.Context, method, reqURL string, header http.Header, body string) (*Envelope, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, err
	}
	if header != nil {
		req.Header = header.Clone()
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("non-json response (%d): %w", resp.StatusCode, err)
	}
	return &env, nil
}

// signedForm builds the urlencoded body and the extra headers for a signed
// endpoint: sign and timestamp go into the body, the RSA-encrypted secret
// into rk/key (native) or k (h5).
func (c *Client) signedForm(ctx context.Context, payload map[string]string, token string, extra map[string]string, header http.Header) (string, error) {
	si := BuildSignature(payload, token)

	form := url.Values{}
	for k, v := range payload {
		form.Set(k, v)
	}
	form.Set("sign", si.Sign)
	form.Set("timestamp", strconv.FormatInt(si.Timestamp, 10))
	for k, v := range extra {
		form.Set(k, v)
	}

	pub := c.RSAPublicKey(ctx)
	ek, err := RSAEncrypt(si.Secret, pub)
	if err != nil {
		return "", err
	}

	if IsH5(header) {
		header.Set("k", ek)
	} else {
		header.Set("rk", si.Secret)
		header.Set("key", ek)
	}
	return form.Encode(), nil
}

// RSAPublicKey returns the upstream signing key, fetched at most once per day
// and cached on the client. Falls back to the hard-coded default key when the
// fetch fails or comes back empty.
func (c *Client) RSAPublicKey(ctx context.Context) string {
	if v, ok := c.rsaCache.Get("rsa"); ok {
		if e, ok := v.(cacheEntry); ok && time.Now().Before(e.expires) {
			return e.value.(string)
		}
	}

	key := DefaultRSAPublicKey
	header := c.headers(HeaderOptions{DevCode: DevCode()})
	env := c.do(ctx, http.MethodPost, pathRSAPublicKey, header, "")
	if env.IsSuccess() {
		var res RSAKeyResult
		if err := env.Decode(&res); err == nil && res.Key != "" {
			key = res.Key
		}
	}

	c.rsaCache.Add("rsa", cacheEntry{value: key, expires: time.Now().Add(rsaKeyTTL)})
	return key
}

// Login exchanges a phone number and SMS code for a token. Signed.
func (c *Client) Login(ctx context.Context, mobile, code, devCode string) *Envelope {
	payload := map[string]string{
		"mobile":   mobile,
		"code":     code,
		"gameList": strconv.Itoa(GameID),
	}
	header := c.headers(HeaderOptions{DevCode: devCode, NeedOrigin: true, NeedRefer: true})
	body, err := c.signedForm(ctx, payload, "", nil, header)
	if err != nil {
		return ErrEnvelope(err.Error())
	}
	return c.do(ctx, http.MethodPost, pathLogin, header, body)
}

// LoginLog is the liveness probe for a token.
func (c *Client) LoginLog(ctx context.Context, token, devCode string) *Envelope {
	header := c.headers(HeaderOptions{DevCode: devCode, Token: token})
	return c.do(ctx, http.MethodPost, pathLoginLog, header, "")
}

func (c *Client) RoleList(ctx context.Context, token, devCode string) *Envelope {
	header := c.headers(HeaderOptions{DevCode: devCode, Token: token})
	return c.do(ctx, http.MethodPost, pathRoleList, header, "")
}

// RoleForTool returns the account roster used by the alias rebuild and the
// rotation fallback. Signed.
func (c *Client) RoleForTool(ctx context.Context, token, devCode string) *Envelope {
	payload := map[string]string{"type": "1"}
	header := c.headers(HeaderOptions{DevCode: devCode, Token: token})
	body, err := c.signedForm(ctx, payload, token, nil, header)
	if err != nil {
		return ErrEnvelope(err.Error())
	}
	return c.do(ctx, http.MethodPost, pathRoleForTool, header, body)
}

func (c *Client) ShortNote(ctx context.Context, token, devCode string) *Envelope {
	header := c.headers(HeaderOptions{DevCode: devCode, Token: token})
	return c.do(ctx, http.MethodPost, pathShortNote, header, "")
}

func (c *Client) HaveSignIn(ctx context.Context, token, devCode string) *Envelope {
	header := c.headers(HeaderOptions{DevCode: devCode, Token: token})
	return c.do(ctx, http.MethodPost, pathHaveSignIn, header, c.gameIDForm())
}

func (c *Client) SignCalendar(ctx context.Context, token, devCode string) *Envelope {
	header := c.headers(HeaderOptions{DevCode: devCode, Token: token})
	return c.do(ctx, http.MethodPost, pathSignCalendar, header, c.gameIDForm())
}

func (c *Client) GameSign(ctx context.Context, token string, dayAwardID, periodID int, devCode string) *Envelope {
	header := c.headers(HeaderOptions{DevCode: devCode, Token: token})
	form := url.Values{}
	form.Set("dayAwardId", strconv.Itoa(dayAwardID))
	form.Set("periodId", strconv.Itoa(periodID))
	form.Set("signinType", "1")
	return c.do(ctx, http.MethodPost, pathGameSign, header, form.Encode())
}

func (c *Client) BBSSign(ctx context.Context, token, devCode string) *Envelope {
	header := c.headers(HeaderOptions{DevCode: devCode, Token: token})
	return c.do(ctx, http.MethodPost, pathBBSSign, header, c.gameIDForm())
}

func (c *Client) TaskProcess(ctx context.Context, token, devCode string) *Envelope {
	header := c.headers(HeaderOptions{DevCode: devCode, Token: token})
	return c.do(ctx, http.MethodPost, pathTaskProcess, header, c.gameIDForm())
}

// PostList returns the newest posts of the shared forum. Successful results
// are cached per token for an hour; the detail/like/reply tasks of one signin
// run all draw from the same listing.
func (c *Client) PostList(ctx context.Context, token, devCode string) *Envelope {
	if v, ok := c.postCache.Get(token); ok {
		if e, ok := v.(cacheEntry); ok && time.Now().Before(e.expires) {
			return e.value.(*Envelope)
		}
	}

	header := c.headers(HeaderOptions{DevCode: devCode, Token: token})
	form := url.Values{}
	form.Set("forumId", strconv.Itoa(forumAll))
	form.Set("gameId", strconv.Itoa(GameID))
	form.Set("pageIndex", "1")
	form.Set("pageSize", "20")
	form.Set("searchType", "1")
	form.Set("timeType", "0")
	env := c.do(ctx, http.MethodPost, pathPostList, header, form.Encode())
	if env.IsSuccess() {
		c.postCache.Add(token, cacheEntry{value: env, expires: time.Now().Add(postListTTL)})
	}
	return env
}

func (c *Client) PostDetail(ctx context.Context, postID, token, devCode string) *Envelope {
	header := c.headers(HeaderOptions{DevCode: devCode, Token: token})
	form := url.Values{}
	form.Set("postId", postID)
	return c.do(ctx, http.MethodPost, pathPostDetail, header, form.Encode())
}

func (c *Client) LikePost(ctx context.Context, token string, post Post, devCode string) *Envelope {
	header := c.headers(HeaderOptions{DevCode: devCode, Token: token})
	form := url.Values{}
	form.Set("forumId", strconv.Itoa(post.GameForumID))
	form.Set("gameId", strconv.Itoa(GameID))
	form.Set("likeType", "1")
	form.Set("operateType", "1")
	form.Set("postCommentId", "")
	form.Set("postCommentReplyId", "")
	form.Set("postId", post.PostID)
	form.Set("postType", strconv.Itoa(post.PostType))
	form.Set("toUserId", post.UserID)
	return c.do(ctx, http.MethodPost, pathLikePost, header, form.Encode())
}

func (c *Client) SharePost(ctx context.Context, token, devCode string) *Envelope {
	header := c.headers(HeaderOptions{DevCode: devCode, Token: token})
	return c.do(ctx, http.MethodPost, pathSharePost, header, c.gameIDForm())
}

// ReplyPost posts a comment under the given post. Signed; the toUserId field
// is appended after signing, matching the mobile client.
func (c *Client) ReplyPost(ctx context.Context, token string, post Post, content, devCode string) *Envelope {
	contentJSON, _ := json.Marshal([]map[string]any{{
		"content":     content,
		"contentType": "1",
		"imgHeight":   0,
		"imgWidth":    0,
		"url":         "",
	}})

	forumID := post.GameForumID
	if forumID == 0 {
		forumID = 47
	}
	payload := map[string]string{
		"postId":   post.PostID,
		"forumId":  strconv.Itoa(forumID),
		"postType": "1",
		"content":  string(contentJSON),
	}

	header := c.headers(HeaderOptions{DevCode: devCode, Token: token, NeedOrigin: true, NeedRefer: true})
	body, err := c.signedForm(ctx, payload, "", map[string]string{"toUserId": post.UserID}, header)
	if err != nil {
		return ErrEnvelope(err.Error())
	}
	return c.do(ctx, http.MethodPost, pathReplyPost, header, body)
}

// AnnList returns the official announcement feed. With useCache the last
// successful feed is returned without a network call.
func (c *Client) AnnList(ctx context.Context, useCache bool) ([]Post, error) {
	if useCache {
		if v, ok := c.annCache.Get("ann"); ok {
			return v.([]Post), nil
		}
	}

	header := c.headers(HeaderOptions{DevCode: DevCode()})
	form := url.Values{}
	form.Set("otherUserId", annPosterID)
	form.Set("searchType", "1")
	form.Set("type", "2")
	env := c.do(ctx, http.MethodPost, pathAnnList, header, form.Encode())
	if !env.IsSuccess() {
		return nil, fmt.Errorf("dnaapi: announcement list: %s", env.ThrowMsg())
	}

	var res PostListResult
	if err := env.Decode(&res); err != nil {
		return nil, fmt.Errorf("dnaapi: announcement list: %w", err)
	}
	c.annCache.Add("ann", res.PostList)
	return res.PostList, nil
}

// DoRaw issues a request against an absolute URL, used for the third-party
// rotation mirrors.
func (c *Client) DoRaw(ctx context.Context, method, absURL string, header http.Header) *Envelope {
	if header == nil {
		header = c.headers(HeaderOptions{})
	}
	return c.do(ctx, method, absURL, header, "")
}

func (c *Client) gameIDForm() string {
	form := url.Values{}
	form.Set("gameId", strconv.Itoa(GameID))
	return form.Encode()
}
