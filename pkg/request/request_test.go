package request

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		w.Header().Set("X-Custom", "test")
		json.NewEncoder(w).Encode(map[string]string{"msg": "ok"})
	}))
	defer srv.Close()

	client := New(WithBaseURL(srv.URL))
	resp, err := client.Get("/data").SetQuery("page", "1").Do()
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, "test", resp.Headers.Get("X-Custom"))

	var body map[string]string
	require.NoError(t, resp.Unmarshal(&body))
	assert.Equal(t, "ok", body["msg"])
}

func TestPost_JSON(t *testing.T) {
	type Req struct {
		Name string `json:"name"`
	}
	type Resp struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req Req
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(Resp{ID: 1, Name: req.Name})
	}))
	defer srv.Close()

	client := New(WithBaseURL(srv.URL))
	result, err := Do[Resp](client.Post("/users").SetBody(&Req{Name: "test"}))
	require.NoError(t, err)
	assert.Equal(t, 1, result.ID)
	assert.Equal(t, "test", result.Name)
}

func TestRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"msg":"ok"}`))
	}))
	defer srv.Close()

	client := New(WithBaseURL(srv.URL), WithRetry(&RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}))
	resp, err := client.Get("/flaky").Do()
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetry_Exhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(WithBaseURL(srv.URL), WithRetry(&RetryConfig{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
	}))
	resp, err := client.Get("/down").Do()
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestDo_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := New(WithBaseURL(srv.URL))
	_, err := Do[map[string]string](client.Get("/missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestSetContext_Cancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	client := New(WithBaseURL(srv.URL))
	_, err := client.Get("/slow").SetContext(ctx).Do()
	require.Error(t, err)
}

func TestSetXMLBody(t *testing.T) {
	type Payload struct {
		XMLName struct{} `xml:"xml"`
		Content string   `xml:"Content"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/xml", r.Header.Get("Content-Type"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := New(WithBaseURL(srv.URL))
	resp, err := client.Post("/xml").SetXMLBody(&Payload{Content: "hello"}).Do()
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
}
