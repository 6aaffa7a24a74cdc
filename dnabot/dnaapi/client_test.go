package dnaapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(srv *httptest.Server) *Client {
	return NewClient(
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithRetry(3, time.Millisecond),
	)
}

func Test_client_RetriesThenSyntheticFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	env := testClient(srv).LoginLog(context.Background(), "tok", DevCode())
	if env.IsSuccess() {
		t.Fatalf("LoginLog() succeeded against a broken upstream")
	}
	if env.Code != CodeError {
		t.Errorf("code = %d, want %d", env.Code, CodeError)
	}
	if env.Msg != "请求服务器失败，已达最大重试次数" {
		t.Errorf("msg = %q", env.Msg)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("upstream hit %d times, want 3", got)
	}
}

func Test_client_RetriesUntilSuccess(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.Write([]byte("not json"))
			return
		}
		w.Write([]byte(`{"code":200,"msg":"请求成功","success":true,"data":null}`))
	}))
	defer srv.Close()

	env := testClient(srv).LoginLog(context.Background(), "tok", DevCode())
	if !env.IsSuccess() {
		t.Fatalf("LoginLog() = %q, want success after retries", env.Msg)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("upstream hit %d times, want 3", got)
	}
}

func Test_client_BusinessFailureNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"code":500,"msg":"token过期","success":false,"data":null}`))
	}))
	defer srv.Close()

	env := testClient(srv).LoginLog(context.Background(), "tok", DevCode())
	if env.IsSuccess() {
		t.Fatalf("LoginLog() succeeded on a business failure")
	}
	if env.ThrowMsg() != "token过期" {
		t.Errorf("ThrowMsg() = %q, want %q", env.ThrowMsg(), "token过期")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("upstream hit %d times, want 1", got)
	}
}

func Test_client_PostListCachesPerToken(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"code":200,"msg":"","success":true,"data":{"postList":[{"postId":"1"}]}}`))
	}))
	defer srv.Close()

	c := testClient(srv)
	ctx := context.Background()
	dev := DevCode()

	c.PostList(ctx, "tokenA", dev)
	c.PostList(ctx, "tokenA", dev)
	if got := hits.Load(); got != 1 {
		t.Errorf("upstream hit %d times after two same-token calls, want 1", got)
	}

	c.PostList(ctx, "tokenB", dev)
	if got := hits.Load(); got != 2 {
		t.Errorf("upstream hit %d times after a second token, want 2", got)
	}
}

func Test_client_AnnList(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"code":200,"msg":"","success":true,"data":{"postList":[{"postId":"900","postTitle":"维护公告"}]}}`))
	}))
	defer srv.Close()

	c := testClient(srv)
	ctx := context.Background()

	posts, err := c.AnnList(ctx, false)
	if err != nil {
		t.Fatalf("AnnList() error = %v", err)
	}
	if len(posts) != 1 || posts[0].PostID != "900" {
		t.Fatalf("AnnList() = %+v", posts)
	}

	// A cached read serves the last feed without a network call.
	if _, err := c.AnnList(ctx, true); err != nil {
		t.Fatalf("AnnList(cached) error = %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("upstream hit %d times, want 1", got)
	}
}

func Test_client_RSAPublicKeyFallsBack(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"code":500,"msg":"维护中","success":false,"data":null}`))
	}))
	defer srv.Close()

	c := testClient(srv)
	if got := c.RSAPublicKey(context.Background()); got != DefaultRSAPublicKey {
		t.Fatalf("RSAPublicKey() = %q, want the shipped default", got)
	}

	// The fallback is cached too; no second fetch within the TTL.
	c.RSAPublicKey(context.Background())
	if got := hits.Load(); got != 1 {
		t.Errorf("key endpoint hit %d times, want 1", got)
	}
}
