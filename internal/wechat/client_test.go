package wechat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/wxgate/pkg/cache"
	"github.com/tokmz/wxgate/pkg/logger"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	log, err := logger.NewWithOptions(logger.WithLevel(logger.ErrorLevel), logger.WithConsoleOutput())
	require.NoError(t, err)

	store, err := cache.NewWithOptions(cache.WithMemory(cache.DefaultMemoryConfig()))
	require.NoError(t, err)

	return NewClient(ClientConfig{
		AppID:     "wx_app",
		AppSecret: "secret",
		Token:     "token",
		BaseURL:   baseURL,
	}, store, log)
}

func TestAccessTokenFetchAndCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/cgi-bin/token", r.URL.Path)
		assert.Equal(t, "client_credential", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "wx_app", r.URL.Query().Get("appid"))
		assert.Equal(t, "secret", r.URL.Query().Get("secret"))
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"access_token": "AT1", "expires_in": 7200})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)

	token, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AT1", token)

	// 未过期不再请求
	token, err = c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AT1", token)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAccessTokenPlatformError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"errcode": 40013, "errmsg": "invalid appid"})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.AccessToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPlatform)
	assert.Contains(t, err.Error(), "invalid appid")
}

func TestCreateQRTicket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cgi-bin/token":
			json.NewEncoder(w).Encode(map[string]any{"access_token": "AT", "expires_in": 7200})
		case "/cgi-bin/qrcode/create":
			assert.Equal(t, "AT", r.URL.Query().Get("access_token"))

			var body struct {
				ExpireSeconds int64  `json:"expire_seconds"`
				ActionName    string `json:"action_name"`
				ActionInfo    struct {
					Scene struct {
						SceneID int `json:"scene_id"`
					} `json:"scene"`
				} `json:"action_info"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "QR_SCENE", body.ActionName)
			assert.Equal(t, int64(3600), body.ExpireSeconds)
			assert.Equal(t, 7, body.ActionInfo.Scene.SceneID)

			json.NewEncoder(w).Encode(map[string]any{
				"ticket":         "TICKET",
				"expire_seconds": 3600,
				"url":            "http://weixin.qq.com/q/xyz",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)

	url, err := c.LoginURL(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "http://weixin.qq.com/q/xyz", url)
}
