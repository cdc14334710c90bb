// ABOUTME: Qdrant REST implementation of vectorstore.Store over net/http
// ABOUTME: Handles collection bootstrap, upsert, search, paged scroll, retrieve, payload updates, and delete
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jerryymjo/jarvis-memory/internal/logger"
	"github.com/jerryymjo/jarvis-memory/internal/util"
	"github.com/jerryymjo/jarvis-memory/internal/vectorstore"
)

const (
	maxErrorBodyBytes = 1024
	maxResponseBytes  = 32 << 20
	scrollPageSize    = 256
	maxScrollPages    = 10000
)

// Client talks to a single Qdrant deployment. Safe for concurrent use.
type Client struct {
	log     *logger.Logger
	baseURL string
	apiKey  string
	http    *http.Client
}

var _ vectorstore.Store = (*Client)(nil)

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
	Vector  json.RawMessage `json:"vector"`
}

type qdrantScrollResult struct {
	Points         []qdrantPoint   `json:"points"`
	NextPageOffset json.RawMessage `json:"next_page_offset"`
}

func New(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		log:     log.With("service", "QdrantVectorStore"),
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		http:    &http.Client{Timeout: timeout},
	}
	c.log.Info("Qdrant vector store selected", "url", c.baseURL, "timeout", timeout, "auth", c.apiKey != "")
	return c, nil
}

// WaitReady polls /readyz until Qdrant answers, backing off between attempts.
func (c *Client) WaitReady(ctx context.Context, attempts int, baseDelay time.Duration) error {
	const op = "ready"
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := util.CalculateBackoff(baseDelay, attempt)
			c.log.Warn("qdrant not ready, retrying", "attempt", attempt, "delay", delay, "error", lastErr)
			if err := util.Sleep(ctx, delay); err != nil {
				return classifyHTTPCallError(op, "wait for qdrant cancelled", err)
			}
		}
		lastErr = c.ping(ctx)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (c *Client) ping(ctx context.Context) error {
	const op = "ready"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/readyz", nil)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build ready request failed", err)
	}
	c.setHeaders(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant ready check failed", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", resp.StatusCode),
		}
	}
	return nil
}

func (c *Client) EnsureCollection(ctx context.Context, spec vectorstore.CollectionSpec) (bool, error) {
	const op = "ensure_collection"
	if strings.TrimSpace(spec.Name) == "" {
		return false, opErr(op, OperationErrorValidation, "collection name is required", nil)
	}
	if spec.Dimension <= 0 {
		return false, opErr(op, OperationErrorValidation, fmt.Sprintf("collection %q needs a positive dimension", spec.Name), nil)
	}

	exists, err := c.collectionExists(ctx, spec.Name)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	distance := spec.Distance
	if distance == "" {
		distance = vectorstore.DistanceCosine
	}
	req := map[string]any{
		"vectors": map[string]any{
			"size":     spec.Dimension,
			"distance": string(distance),
		},
	}
	if err := c.doJSON(ctx, op, http.MethodPut, collectionPath(spec.Name, ""), req, nil); err != nil {
		if isAlreadyExists(err) {
			c.log.Debug("collection created concurrently", "collection", spec.Name)
			return false, nil
		}
		return false, err
	}
	c.log.Info("Created collection", "collection", spec.Name, "dimension", spec.Dimension)
	return true, nil
}

func (c *Client) collectionExists(ctx context.Context, name string) (bool, error) {
	err := c.doJSON(ctx, "get_collection", http.MethodGet, collectionPath(name, ""), nil, nil)
	if err == nil {
		return true, nil
	}
	var opErrTyped *OperationError
	if errors.As(err, &opErrTyped) && opErrTyped.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

func (c *Client) Upsert(ctx context.Context, collection string, points ...vectorstore.Point) error {
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(points))
	for _, p := range points {
		if _, err := uuid.Parse(p.ID); err != nil {
			return opErr(op, OperationErrorValidation, fmt.Sprintf("point id %q is not a UUID", p.ID), err)
		}
		if len(p.Vector) == 0 {
			return opErr(op, OperationErrorValidation, fmt.Sprintf("point %q has empty vector", p.ID), nil)
		}
		out = append(out, map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": vectorstore.ClonePayload(p.Payload),
		})
	}
	req := map[string]any{"points": out}
	return c.doJSON(ctx, op, http.MethodPut, collectionPath(collection, "/points?wait=true"), req, nil)
}

func (c *Client) Search(ctx context.Context, collection string, vector []float32, filter *vectorstore.Filter, limit int) ([]vectorstore.ScoredPoint, error) {
	const op = "search"
	if len(vector) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if limit <= 0 {
		limit = 10
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if f := translateFilter(filter); f != nil {
		req["filter"] = f
	}

	var raw []qdrantPoint
	if err := c.doJSON(ctx, op, http.MethodPost, collectionPath(collection, "/points/search"), req, &raw); err != nil {
		return nil, err
	}

	out := make([]vectorstore.ScoredPoint, 0, len(raw))
	for _, item := range raw {
		out = append(out, vectorstore.ScoredPoint{
			ID:      decodePointID(item.ID),
			Score:   item.Score,
			Payload: item.Payload,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (c *Client) Scroll(ctx context.Context, collection string, filter *vectorstore.Filter) ([]vectorstore.Point, error) {
	const op = "scroll"
	var out []vectorstore.Point
	var offset json.RawMessage

	for page := 0; page < maxScrollPages; page++ {
		req := map[string]any{
			"limit":        scrollPageSize,
			"with_payload": true,
			"with_vector":  false,
		}
		if f := translateFilter(filter); f != nil {
			req["filter"] = f
		}
		if len(offset) > 0 {
			req["offset"] = offset
		}

		var res qdrantScrollResult
		if err := c.doJSON(ctx, op, http.MethodPost, collectionPath(collection, "/points/scroll"), req, &res); err != nil {
			return nil, err
		}
		for _, item := range res.Points {
			out = append(out, vectorstore.Point{ID: decodePointID(item.ID), Payload: item.Payload})
		}

		next := strings.TrimSpace(string(res.NextPageOffset))
		if next == "" || next == "null" {
			return out, nil
		}
		offset = res.NextPageOffset
	}
	return nil, opErr(op, OperationErrorRequestFailed, "scroll did not terminate", nil)
}

func (c *Client) Get(ctx context.Context, collection, id string) (*vectorstore.Point, error) {
	const op = "retrieve"
	req := map[string]any{
		"ids":          []string{id},
		"with_payload": true,
		"with_vector":  true,
	}
	var raw []qdrantPoint
	if err := c.doJSON(ctx, op, http.MethodPost, collectionPath(collection, "/points"), req, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var vec []float32
	if len(raw[0].Vector) > 0 {
		// Named vectors come back as an object; only the unnamed form is used here.
		_ = json.Unmarshal(raw[0].Vector, &vec)
	}
	return &vectorstore.Point{
		ID:      decodePointID(raw[0].ID),
		Vector:  vec,
		Payload: raw[0].Payload,
	}, nil
}

func (c *Client) SetPayload(ctx context.Context, collection, id string, fields map[string]any) error {
	const op = "set_payload"
	if len(fields) == 0 {
		return nil
	}
	req := map[string]any{
		"payload": fields,
		"points":  []string{id},
	}
	return c.doJSON(ctx, op, http.MethodPost, collectionPath(collection, "/points/payload?wait=true"), req, nil)
}

func (c *Client) Delete(ctx context.Context, collection string, ids ...string) error {
	const op = "delete"
	if len(ids) == 0 {
		return nil
	}
	req := map[string]any{"points": ids}
	return c.doJSON(ctx, op, http.MethodPost, collectionPath(collection, "/points/delete?wait=true"), req, nil)
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		code := OperationErrorRequestFailed
		if resp.StatusCode == http.StatusConflict {
			code = OperationErrorCollectionExists
		}
		return &OperationError{
			Code:       code,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}

	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return opErr(op, OperationErrorCancelled, message, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func isAlreadyExists(err error) bool {
	var opErrTyped *OperationError
	if !errors.As(err, &opErrTyped) {
		return false
	}
	if opErrTyped.Code == OperationErrorCollectionExists {
		return true
	}
	return opErrTyped.StatusCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(opErrTyped.Message), "already exists")
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}

	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}

	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil && strings.TrimSpace(statusObject.Error) != "" {
		return strings.TrimSpace(statusObject.Error)
	}
	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func collectionPath(collection, suffix string) string {
	return "/collections/" + url.PathEscape(collection) + suffix
}

func decodePointID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var idString string
	if err := json.Unmarshal(raw, &idString); err == nil {
		return strings.TrimSpace(idString)
	}
	var idNumber uint64
	if err := json.Unmarshal(raw, &idNumber); err == nil {
		return fmt.Sprintf("%d", idNumber)
	}
	return strings.TrimSpace(string(raw))
}
