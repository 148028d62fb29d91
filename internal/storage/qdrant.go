package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"resume-match-go/internal/config"
	"resume-match-go/internal/embedding"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/tracing"
	"resume-match-go/internal/types"
)

// 定义Qdrant的专用tracer
var qdrantTracer = otel.Tracer("resume-match-go/storage/qdrant")

// QdrantPointIDNamespace 用于生成确定性point ID的专用命名空间
// 同一简历的同一分块总是映射到同一个point ID，保证upsert幂等
var QdrantPointIDNamespace = uuid.Must(uuid.FromString("a3c1f0de-97b2-4c6e-b8d4-52d1e09b7f3a"))

// Qdrant 基于HTTP API的Qdrant向量索引实现
type Qdrant struct {
	endpoint       string
	collectionName string
	vectorSize     int
	apiKey         string
	httpClient     *http.Client
}

// 确保Qdrant实现了VectorIndex接口
var _ VectorIndex = (*Qdrant)(nil)

// QdrantOption Qdrant构造选项
type QdrantOption func(*Qdrant)

// WithHTTPTimeout 设置HTTP客户端超时
func WithHTTPTimeout(timeout time.Duration) QdrantOption {
	return func(q *Qdrant) {
		q.httpClient = &http.Client{Timeout: timeout}
	}
}

// NewQdrant 创建Qdrant客户端并确保集合存在
func NewQdrant(cfg *config.QdrantConfig, opts ...QdrantOption) (*Qdrant, error) {
	if cfg == nil {
		return nil, fmt.Errorf("qdrant配置不能为空")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:6333"
	}
	collectionName := cfg.Collection
	if collectionName == "" {
		collectionName = "resume_chunks"
	}
	vectorSize := cfg.Dimension
	if vectorSize <= 0 {
		vectorSize = 1024
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	q := &Qdrant{
		endpoint:       endpoint,
		collectionName: collectionName,
		vectorSize:     vectorSize,
		apiKey:         cfg.APIKey,
		httpClient:     &http.Client{Timeout: timeout},
	}

	for _, opt := range opts {
		opt(q)
	}

	if err := q.ensureCollectionExists(context.Background()); err != nil {
		return nil, fmt.Errorf("确保集合 '%s' 存在失败: %w", collectionName, err)
	}

	logger.Info().
		Str("endpoint", endpoint).
		Str("collection", collectionName).
		Int("dimension", vectorSize).
		Msg("成功连接到Qdrant服务器")
	return q, nil
}

// ensureCollectionExists 集合不存在时创建
func (q *Qdrant) ensureCollectionExists(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.EnsureCollectionExists",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "check_collection"),
		attribute.String("db.collection", q.collectionName),
	)

	url := fmt.Sprintf("%s/collections/%s", q.endpoint, q.collectionName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("创建检查集合请求失败: %w", err)
	}
	q.setHeaders(ctx, req)

	resp, err := q.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("发送检查集合请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		span.AddEvent("collection_not_found")
		return q.createCollection(ctx)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("检查集合失败，状态码: %d, 响应: %s", resp.StatusCode, string(body))
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// createCollection 按配置维度创建余弦距离集合
func (q *Qdrant) createCollection(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.CreateCollection",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	reqBody := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     q.vectorSize,
			"distance": "Cosine",
		},
	}

	var result struct {
		Result bool   `json:"result"`
		Status string `json:"status"`
	}
	if err := q.doRequest(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", q.collectionName), reqBody, &result); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("创建集合失败: %w", err)
	}

	logger.Info().
		Str("collection", q.collectionName).
		Int("dimension", q.vectorSize).
		Msg("已创建Qdrant集合")
	span.SetStatus(codes.Ok, "")
	return nil
}

// PointID 基于简历ID与分块Index生成确定性的point ID
func PointID(resumeID string, chunkIndex int) string {
	idSource := fmt.Sprintf("resume_id:%s_chunk_index:%d", resumeID, chunkIndex)
	return uuid.NewV5(QdrantPointIDNamespace, idSource).String()
}

// Upsert 写入一批分块向量，幂等，同ID覆盖
func (q *Qdrant) Upsert(ctx context.Context, chunks []types.Chunk) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.Upsert",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "upsert"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("points.count", len(chunks)),
	)

	if len(chunks) == 0 {
		span.SetStatus(codes.Ok, "no points to store")
		return nil
	}

	points := make([]interface{}, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) != q.vectorSize {
			err := fmt.Errorf("向量维度(%d)与配置维度(%d)不匹配", len(chunk.Embedding), q.vectorSize)
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}

		payload := map[string]interface{}{
			"resume_id":    chunk.SourceResumeID,
			"chunk_index":  chunk.Index,
			"content_text": chunk.Text,
		}
		if chunk.ScopeID != types.ScopeAll {
			payload["job_id"] = chunk.ScopeID
		}
		for k, v := range chunk.Metadata {
			payload[k] = v
		}

		points = append(points, map[string]interface{}{
			"id":      PointID(chunk.SourceResumeID, chunk.Index),
			"vector":  embedding.Normalize(chunk.Embedding),
			"payload": payload,
		})
	}

	var result struct {
		Result struct {
			Status string `json:"status"`
		} `json:"result"`
		Status string `json:"status"`
	}
	path := fmt.Sprintf("/collections/%s/points?wait=true", q.collectionName)
	if err := q.doRequest(ctx, http.MethodPut, path, map[string]interface{}{"points": points}, &result); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("写入向量点失败: %w", err)
	}

	span.SetAttributes(attribute.String("qdrant.response_status", result.Status))
	span.SetStatus(codes.Ok, "")
	return nil
}

// DeleteByResume 按简历ID过滤删除全部分块
func (q *Qdrant) DeleteByResume(ctx context.Context, resumeID string) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.DeleteByResume",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "delete_points"),
		attribute.String("db.collection", q.collectionName),
		attribute.String("resume.id", resumeID),
	)

	reqBody := map[string]interface{}{
		"filter": map[string]interface{}{
			"must": []interface{}{
				map[string]interface{}{
					"key":   "resume_id",
					"match": map[string]interface{}{"value": resumeID},
				},
			},
		},
	}

	var result struct {
		Status string `json:"status"`
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", q.collectionName)
	if err := q.doRequest(ctx, http.MethodPost, path, reqBody, &result); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("删除简历向量失败: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Query 余弦相似度最近邻查询，scopeID非空时按岗位过滤
func (q *Qdrant) Query(ctx context.Context, queryVector []float64, topK int, scopeID string) ([]types.ScoredChunk, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.Query",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "search_vectors"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("search.limit", topK),
		attribute.String("search.scope", scopeID),
	)

	if len(queryVector) != q.vectorSize {
		err := fmt.Errorf("查询向量维度(%d)与配置维度(%d)不匹配", len(queryVector), q.vectorSize)
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	searchReq := map[string]interface{}{
		"vector":       embedding.Normalize(queryVector),
		"limit":        topK,
		"with_payload": true,
	}
	if scopeID != types.ScopeAll {
		searchReq["filter"] = map[string]interface{}{
			"must": []interface{}{
				map[string]interface{}{
					"key":   "job_id",
					"match": map[string]interface{}{"value": scopeID},
				},
			},
		}
	}

	var result struct {
		Result []struct {
			ID      string                 `json:"id"`
			Score   float64                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
		Status string `json:"status"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", q.collectionName)
	if err := q.doRequest(ctx, http.MethodPost, path, searchReq, &result); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}

	scored := make([]types.ScoredChunk, 0, len(result.Result))
	for _, point := range result.Result {
		scored = append(scored, types.ScoredChunk{
			Chunk:      chunkFromPayload(point.ID, point.Payload),
			Similarity: math.Max(0, math.Min(1, point.Score)),
		})
	}

	// Qdrant只按分数排序，分数相同时补一个确定性的次序
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		if scored[i].Chunk.SourceResumeID != scored[j].Chunk.SourceResumeID {
			return scored[i].Chunk.SourceResumeID < scored[j].Chunk.SourceResumeID
		}
		return scored[i].Chunk.Index < scored[j].Chunk.Index
	})

	span.SetAttributes(attribute.Int("search.results.count", len(scored)))
	span.SetStatus(codes.Ok, "")
	return scored, nil
}

// chunkFromPayload 从Qdrant payload还原分块
func chunkFromPayload(pointID string, payload map[string]interface{}) types.Chunk {
	chunk := types.Chunk{ID: pointID}

	if v, ok := payload["resume_id"].(string); ok {
		chunk.SourceResumeID = v
	}
	if v, ok := payload["job_id"].(string); ok {
		chunk.ScopeID = v
	}
	if v, ok := payload["content_text"].(string); ok {
		chunk.Text = v
	}
	switch v := payload["chunk_index"].(type) {
	case float64:
		chunk.Index = int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			chunk.Index = int(n)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			chunk.Index = n
		}
	}

	metadata := make(map[string]string)
	for k, v := range payload {
		switch k {
		case "resume_id", "job_id", "content_text", "chunk_index":
			continue
		}
		if s, ok := v.(string); ok {
			metadata[k] = s
		}
	}
	if len(metadata) > 0 {
		chunk.Metadata = metadata
	}
	return chunk
}

// doRequest 发送请求并解析响应，注入追踪上下文与API Key
func (q *Qdrant) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求体失败: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.endpoint+path, reqBody)
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	q.setHeaders(ctx, req)

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("执行HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应体失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Qdrant API调用失败，状态码: %d，响应: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("解析响应体失败: %w", err)
		}
	}
	return nil
}

func (q *Qdrant) setHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
}
