package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
)

// Client 通用 JSON HTTP 客户端，用于拉取远程 BAM 定义等外部接口。
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
	getAuth    func() string // 动态获取 Authorization，可为空
}

// Config HTTP 客户端配置。
type Config struct {
	BaseURL            string
	Timeout            time.Duration
	Headers            map[string]string
	InsecureSkipVerify bool
}

// NewClient 创建 HTTP 客户端实例，Timeout 默认 30s。
func NewClient(cfg Config, getAuth func() string) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	transport := &http.Transport{}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		headers: cfg.Headers,
		getAuth: getAuth,
	}
}

// HTTPClient 返回底层客户端，测试中用于替换 Transport。
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Request 请求体非空时按 JSON 序列化。
type Request struct {
	Method  string
	Path    string // 相对 BaseURL，BaseURL 为空时为完整地址
	Headers map[string]string
	Body    interface{}
}

type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Do 执行 HTTP 请求，非 2xx 不视为错误，由调用方检查。
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	url := c.baseURL + req.Path

	var bodyReader io.Reader
	var requestBody []byte
	if req.Body != nil {
		var err error
		requestBody, err = sonic.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrap(err, "序列化请求体失败")
		}
		bodyReader = bytes.NewReader(requestBody)
	}

	var statusCode int
	defer func(start time.Time) {
		log.Debugw("HTTP",
			"method", req.Method,
			"url", url,
			"request_body", string(requestBody),
			"status_code", statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}(time.Now())

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bodyReader)
	if err != nil {
		return nil, errors.Wrap(err, "创建请求失败")
	}
	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.getAuth != nil {
		if auth := c.getAuth(); auth != "" {
			httpReq.Header.Set("Authorization", auth)
		}
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "请求失败")
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "读取响应失败")
	}
	statusCode = httpResp.StatusCode

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
	}, nil
}

// Get 执行 GET 请求。
func (c *Client) Get(ctx context.Context, path string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Headers: headers})
}

// DecodeJSON 将响应体解析为 JSON。
func (r *Response) DecodeJSON(v interface{}) error {
	if err := sonic.Unmarshal(r.Body, v); err != nil {
		return errors.Wrap(err, "解析 JSON 失败")
	}
	return nil
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
