package request

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client HTTP 客户端
type Client struct {
	cfg    *Config
	client *http.Client
}

// New 创建 HTTP 客户端
func New(opts ...Option) *Client {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig 使用配置创建 HTTP 客户端
func NewWithConfig(cfg *Config) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.buildTransport(),
		},
	}
}

// Get 创建 GET 请求
func (c *Client) Get(url string) *Request {
	return newRequest(c, http.MethodGet, url)
}

// Post 创建 POST 请求
func (c *Client) Post(url string) *Request {
	return newRequest(c, http.MethodPost, url)
}

// Put 创建 PUT 请求
func (c *Client) Put(url string) *Request {
	return newRequest(c, http.MethodPut, url)
}

// Delete 创建 DELETE 请求
func (c *Client) Delete(url string) *Request {
	return newRequest(c, http.MethodDelete, url)
}

// R 创建通用请求构建器（需通过 SetMethod/SetURL 设置）
func (c *Client) R(ctx context.Context) *Request {
	r := newRequest(c, "", "")
	r.ctx = ctx
	return r
}

// mergeHeaders 合并全局 header 和请求 header（请求级优先），返回新 map
func (c *Client) mergeHeaders(reqHeaders map[string]string) map[string]string {
	merged := make(map[string]string, len(c.cfg.Headers)+len(reqHeaders))
	for k, v := range c.cfg.Headers {
		merged[k] = v
	}
	// 请求级 header 覆盖全局
	for k, v := range reqHeaders {
		merged[k] = v
	}
	return merged
}

// execute 执行请求（含重试）
func (c *Client) execute(r *Request) (*Response, error) {
	retryCfg := r.retry
	if retryCfg == nil {
		retryCfg = c.cfg.Retry
	}

	// 无重试直接执行
	if retryCfg == nil {
		return c.doOnce(r)
	}

	// clone + normalize 避免修改用户传入的配置
	rc := *retryCfg
	rc.normalize()

	var lastResp *Response
	var lastErr error

	for attempt := 0; attempt <= rc.MaxAttempts; attempt++ {
		lastResp, lastErr = c.doOnce(r)

		if attempt == rc.MaxAttempts {
			break
		}

		var httpResp *http.Response
		if lastResp != nil {
			httpResp = &http.Response{StatusCode: lastResp.StatusCode}
		}

		if !rc.RetryIf(httpResp, lastErr) {
			return lastResp, lastErr
		}

		// 退避等待（使用 NewTimer 避免泄漏）
		delay := rc.backoff(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-r.ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %w", ErrTimeout, r.ctx.Err())
		case <-timer.C:
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrMaxRetry, lastErr)
	}
	return lastResp, nil
}

// doOnce 执行单次请求
func (c *Client) doOnce(r *Request) (*Response, error) {
	// 合并 header（不修改 Request 本身）
	merged := c.mergeHeaders(r.headers)

	httpReq, err := r.buildHTTPRequest(c.cfg.BaseURL, merged)
	if err != nil {
		return nil, err
	}

	// 设置请求级超时（cancel 限定在本次调用内）
	if r.timeout > 0 {
		ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
		defer cancel()
		httpReq = httpReq.WithContext(ctx)
	}

	start := time.Now()
	httpResp, err := c.client.Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		if c.cfg.Logger != nil {
			c.cfg.Logger.ErrorContext(httpReq.Context(), "http request failed",
				zap.String("method", httpReq.Method),
				zap.String("url", httpReq.URL.String()),
				zap.Error(err),
			)
		}
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		if c.cfg.Logger != nil {
			c.cfg.Logger.ErrorContext(httpReq.Context(), "http read body failed",
				zap.String("method", httpReq.Method),
				zap.String("url", httpReq.URL.String()),
				zap.Error(err),
			)
		}
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
		Duration:   duration,
		Request:    httpReq,
	}, nil
}
