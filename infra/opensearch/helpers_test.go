package opensearch

import (
	"io"
	"net/http"
	"strings"
	"testing"

	opensearchsdk "github.com/opensearch-project/opensearch-go/v2"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

// mockTransport 实现 http.RoundTripper，记录最后一次请求并返回预设响应
type mockTransport struct {
	response *http.Response
	err      error

	method string
	path   string
	body   string
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.method = req.Method
	m.path = req.URL.Path
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		m.body = string(data)
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func newMockTransport(statusCode int, body string) *mockTransport {
	transport := &mockTransport{
		response: &http.Response{
			StatusCode: statusCode,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(http.Header),
		},
	}
	transport.response.Header.Set("Content-Type", "application/json")
	return transport
}

func newClientWithTransport(transport *mockTransport) *opensearchsdk.Client {
	client, _ := opensearchsdk.NewClient(opensearchsdk.Config{
		Transport:    transport,
		Addresses:    []string{"http://localhost:9200"},
		DisableRetry: true,
	})
	return client
}

// newMockClient 创建带有 mock transport 的 OpenSearch 客户端
func newMockClient(statusCode int, body string) *opensearchsdk.Client {
	return newClientWithTransport(newMockTransport(statusCode, body))
}

// newMockClientWithError 创建返回错误的 mock 客户端
func newMockClientWithError(err error) *opensearchsdk.Client {
	return newClientWithTransport(&mockTransport{err: err})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestOpenSearchError_Error(t *testing.T) {
	Convey("TestOpenSearchError_Error", t, func() {
		Convey("有 root_cause 时一并输出", func() {
			osErr := &OpenSearchError{Status: 400}
			osErr.ErrorInfo.Type = "mapper_parsing_exception"
			osErr.ErrorInfo.Reason = "failed to parse"
			osErr.ErrorInfo.RootCause = append(osErr.ErrorInfo.RootCause, struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
				Index  string `json:"index,omitempty"`
			}{Type: "parsing_exception", Reason: "invalid field"})

			So(osErr.Error(), ShouldEqual, "[mapper_parsing_exception] failed to parse (root: parsing_exception - invalid field)")
		})

		Convey("只有 reason", func() {
			osErr := &OpenSearchError{}
			osErr.ErrorInfo.Type = "index_not_found_exception"
			osErr.ErrorInfo.Reason = "no such index"
			So(osErr.Error(), ShouldEqual, "[index_not_found_exception] no such index")
		})

		Convey("只有状态码", func() {
			So((&OpenSearchError{Status: 503}).Error(), ShouldEqual, "opensearch error (status=503)")
		})
	})
}

func TestFormatErrorMessage(t *testing.T) {
	Convey("TestFormatErrorMessage", t, func() {
		Convey("空数据", func() {
			So(formatErrorMessage(nil).Error(), ShouldContainSubstring, "空错误响应")
		})

		Convey("结构化错误", func() {
			err := formatErrorMessage([]byte(`{"error":{"type":"illegal_argument_exception","reason":"bad"},"status":400}`))
			var osErr *OpenSearchError
			So(errors.As(err, &osErr), ShouldBeTrue)
			So(osErr.Status, ShouldEqual, 400)
		})

		Convey("非 JSON 原样返回", func() {
			So(formatErrorMessage([]byte(" gateway timeout \n")).Error(), ShouldEqual, "gateway timeout")
		})

		Convey("只有空白", func() {
			So(formatErrorMessage([]byte("   ")).Error(), ShouldEqual, "unknown opensearch error")
		})

		Convey("读取失败", func() {
			err := readErrorResponse(failingReader{})
			So(err.Error(), ShouldContainSubstring, "读取 OpenSearch 错误响应失败")
		})
	})
}

func TestDecodeSearch(t *testing.T) {
	Convey("TestDecodeSearch", t, func() {
		type doc struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		}

		Convey("解析命中文档", func() {
			items, err := decodeSearch[doc]([]byte(`{"hits":{"hits":[{"_source":{"id":1,"name":"a"}},{"_source":{"id":2,"name":"b"}}]}}`))
			So(err, ShouldBeNil)
			So(items, ShouldResemble, []doc{{1, "a"}, {2, "b"}})
		})

		Convey("没有命中", func() {
			items, err := decodeSearch[doc]([]byte(`{"hits":{"hits":[]}}`))
			So(err, ShouldBeNil)
			So(items, ShouldBeEmpty)
		})

		Convey("非法响应", func() {
			_, err := decodeSearch[doc]([]byte(`not json`))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "解析 search 响应失败")
		})
	})
}

func TestEncodeBody(t *testing.T) {
	Convey("TestEncodeBody", t, func() {
		r, err := encodeBody(map[string]any{"size": 1})
		So(err, ShouldBeNil)
		data, _ := io.ReadAll(r)
		So(string(data), ShouldEqual, `{"size":1}`)

		_, err = encodeBody(make(chan int))
		So(err, ShouldNotBeNil)
	})
}
