package opensearch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	opensearchsdk "github.com/opensearch-project/opensearch-go/v2"
	opensearchapi "github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/pkg/errors"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
)

// OpenSearchError 表示 OpenSearch 返回的错误响应结构。
type OpenSearchError struct {
	ErrorInfo struct {
		Type      string `json:"type"`
		Reason    string `json:"reason"`
		RootCause []struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
			Index  string `json:"index,omitempty"`
		} `json:"root_cause,omitempty"`
	} `json:"error"`
	Status int `json:"status"`
}

// Error 实现 error 接口。
func (e *OpenSearchError) Error() string {
	if e.ErrorInfo.Reason == "" {
		return fmt.Sprintf("opensearch error (status=%d)", e.Status)
	}
	if len(e.ErrorInfo.RootCause) > 0 {
		return fmt.Sprintf("[%s] %s (root: %s - %s)",
			e.ErrorInfo.Type,
			e.ErrorInfo.Reason,
			e.ErrorInfo.RootCause[0].Type,
			e.ErrorInfo.RootCause[0].Reason)
	}
	return fmt.Sprintf("[%s] %s", e.ErrorInfo.Type, e.ErrorInfo.Reason)
}

// searchResponse 只解析命中文档的 _source。
type searchResponse[T any] struct {
	Hits struct {
		Hits []struct {
			Source T `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// document 索引文档的公共字段，由各 store 的文档结构内嵌。
type document struct {
	Timestamp time.Time `json:"@timestamp"`
	WriteTime time.Time `json:"__write_time"`
	DataType  string    `json:"__data_type"`
	IndexBase string    `json:"__index_base"`
	Category  string    `json:"category"`
	Type      string    `json:"type"`
	ID        string    `json:"__id"`
}

func newDocument(base, id string, ts time.Time) document {
	return document{
		Timestamp: ts,
		WriteTime: time.Now().Local(),
		DataType:  base,
		IndexBase: base,
		Category:  "log",
		Type:      base,
		ID:        id,
	}
}

func readResponseBody(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.Wrap(err, "读取 OpenSearch 响应失败")
	}
	return data, nil
}

// formatErrorMessage 解析 OpenSearch 错误响应，无法解析时返回原文。
func formatErrorMessage(data []byte) error {
	if len(data) == 0 {
		return errors.New("opensearch 返回空错误响应")
	}
	var osErr OpenSearchError
	if err := sonic.Unmarshal(data, &osErr); err == nil && osErr.ErrorInfo.Reason != "" {
		return &osErr
	}
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = "unknown opensearch error"
	}
	return errors.New(msg)
}

func readErrorResponse(body io.Reader) error {
	data, err := readResponseBody(body)
	if err != nil {
		return errors.Wrap(err, "读取 OpenSearch 错误响应失败")
	}
	return formatErrorMessage(data)
}

func decodeSearch[T any](data []byte) ([]T, error) {
	var resp searchResponse[T]
	if err := sonic.Unmarshal(data, &resp); err != nil {
		return nil, errors.Wrap(err, "解析 search 响应失败")
	}
	items := make([]T, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		items = append(items, hit.Source)
	}
	return items, nil
}

func encodeBody(payload any) (*bytes.Reader, error) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "序列化请求体失败")
	}
	return bytes.NewReader(data), nil
}

// indexDocument 以指定 ID 覆盖写入文档，相同 ID 重复写入即为更新。
func indexDocument(ctx context.Context, client *opensearchsdk.Client, op, index, id string, doc any) error {
	defer func(start time.Time) {
		log.Debugw("OpenSearch",
			"operation", op,
			"index", index,
			"document_id", id,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}(time.Now())

	if client == nil {
		return errors.New("opensearch client 未初始化")
	}
	body, err := encodeBody(doc)
	if err != nil {
		return err
	}
	req := opensearchapi.IndexRequest{
		Index:      index,
		DocumentID: id,
		Body:       body,
	}
	res, err := req.Do(ctx, client)
	if err != nil {
		return errors.Wrapf(err, "%s 写入失败", op)
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.IsError() {
		return readErrorResponse(res.Body)
	}
	return nil
}

// searchDocuments 执行查询并把命中文档解析为 T。
func searchDocuments[T any](ctx context.Context, client *opensearchsdk.Client, op, index string, query map[string]any) ([]T, error) {
	defer func(start time.Time) {
		log.Debugw("OpenSearch",
			"operation", op,
			"index", index,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}(time.Now())

	if client == nil {
		return nil, errors.New("opensearch client 未初始化")
	}
	body, err := encodeBody(query)
	if err != nil {
		return nil, err
	}
	req := opensearchapi.SearchRequest{
		Index: []string{index},
		Body:  body,
	}
	res, err := req.Do(ctx, client)
	if err != nil {
		return nil, errors.Wrapf(err, "%s 查询失败", op)
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.IsError() {
		return nil, readErrorResponse(res.Body)
	}
	data, err := readResponseBody(res.Body)
	if err != nil {
		return nil, err
	}
	return decodeSearch[T](data)
}

// overlapQuery 查询与 [start, end) 有交集的区间，仍打开的区间没有 end_time。
func overlapQuery(term map[string]any, start, end time.Time) map[string]any {
	filters := []any{
		map[string]any{"range": map[string]any{"start_time": map[string]any{"lt": end}}},
	}
	if term != nil {
		filters = append(filters, map[string]any{"term": term})
	}
	return map[string]any{
		"size": maxQuerySize,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": filters,
				"should": []any{
					map[string]any{"range": map[string]any{"end_time": map[string]any{"gt": start}}},
					map[string]any{"bool": map[string]any{
						"must_not": map[string]any{"exists": map[string]any{"field": "end_time"}},
					}},
				},
				"minimum_should_match": 1,
			},
		},
		"sort": []any{
			map[string]any{"start_time": map[string]any{"order": "asc"}},
		},
	}
}
