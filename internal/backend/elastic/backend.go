// Package elastic provides an Elasticsearch benchmark backend. Records are
// documents keyed by user id in an index with a strict mapping.
package elastic

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/dataset"
)

const (
	KeyURL      = "url"
	KeyUsername = "username"
	KeyPassword = "password"
	KeyIndex    = "index"
	KeyPageSize = "page_size"
	KeyRefresh  = "refresh"
)

//go:embed mapping.json
var indexMapping []byte

func init() {
	backend.Register("elastic", NewFactory, Defaults)
}

// Defaults returns the default configuration for the Elasticsearch backend.
func Defaults() backend.Config {
	return backend.Config{
		KeyURL:      "http://localhost:9200",
		KeyIndex:    "test",
		KeyPageSize: "5000",
		KeyRefresh:  "false",
	}
}

// NewFactory creates a client and checks the cluster answers.
func NewFactory(ctx context.Context, cfg backend.Config) (backend.Backend, error) {
	raw := cfg.String(KeyURL, "")
	if raw == "" {
		return nil, backend.NewConfigError("elastic", KeyURL, "cannot be empty")
	}
	var addrs []string
	for _, a := range strings.Split(raw, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}

	index := cfg.String(KeyIndex, "test")
	if index != strings.ToLower(index) || strings.ContainsAny(index, `\/*?"<>| ,#`) {
		return nil, backend.NewConfigErrorWithValue("elastic", KeyIndex, index, "must be a lowercase index name")
	}
	pageSize, err := cfg.PositiveInt("elastic", KeyPageSize, backend.DefaultPageSize)
	if err != nil {
		return nil, err
	}
	refresh := cfg.String(KeyRefresh, "false")
	switch refresh {
	case "true", "false", "wait_for":
	default:
		return nil, backend.NewConfigErrorWithValue("elastic", KeyRefresh, refresh, "must be true, false or wait_for")
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addrs,
		Username:  cfg.String(KeyUsername, ""),
		Password:  cfg.String(KeyPassword, ""),
	})
	if err != nil {
		return nil, backend.NewConfigErrorWithCause("elastic", KeyURL, "invalid client configuration", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, backend.NewConfigErrorWithCause("elastic", KeyURL, "failed to connect", err)
	}
	if err := checkResponse(res, "info"); err != nil {
		return nil, backend.NewConfigErrorWithCause("elastic", KeyURL, "failed to connect", err)
	}

	slog.Info("elastic backend initialized", "addresses", addrs, "index", index, "page_size", pageSize, "refresh", refresh)
	return &Backend{client: client, index: index, pageSize: pageSize, refresh: refresh}, nil
}

// Backend indexes one document per record.
type Backend struct {
	client   *elasticsearch.Client
	index    string
	pageSize int
	refresh  string
	closed   atomic.Bool
}

// Setup creates the index. An index that already exists is accepted.
func (b *Backend) Setup(ctx context.Context) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	res, err := b.client.Indices.Create(b.index,
		b.client.Indices.Create.WithBody(bytes.NewReader(indexMapping)),
		b.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elastic setup: %w", err)
	}
	err = checkResponse(res, "create index")
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Type == "resource_already_exists_exception" {
		return nil
	}
	if err != nil {
		return fmt.Errorf("elastic setup: %w", err)
	}
	return nil
}

func (b *Backend) WriteOne(ctx context.Context, rec *dataset.Record) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	doc, err := backend.MarshalRecord(rec)
	if err != nil {
		return err
	}
	opts := []func(*esapi.IndexRequest){
		b.client.Index.WithDocumentID(rec.UserID.String()),
		b.client.Index.WithContext(ctx),
	}
	if b.refresh != "false" {
		opts = append(opts, b.client.Index.WithRefresh(b.refresh))
	}
	res, err := b.client.Index(b.index, bytes.NewReader(doc), opts...)
	if err != nil {
		return fmt.Errorf("elastic write one: %w", err)
	}
	if err := checkResponse(res, "index"); err != nil {
		return fmt.Errorf("elastic write one: %w", err)
	}
	return nil
}

// WriteMany sends one _bulk request per page. Any failed item fails the call.
func (b *Backend) WriteMany(ctx context.Context, recs []*dataset.Record) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	for _, page := range backend.Pages(recs, b.pageSize) {
		if err := b.bulk(ctx, page); err != nil {
			return fmt.Errorf("elastic write many: %w", err)
		}
	}
	return nil
}

type bulkAction struct {
	Index struct {
		ID string `json:"_id"`
	} `json:"index"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string    `json:"_id"`
		Status int       `json:"status"`
		Error  *APIError `json:"error"`
	} `json:"items"`
}

func (b *Backend) bulk(ctx context.Context, page []*dataset.Record) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range page {
		var action bulkAction
		action.Index.ID = rec.UserID.String()
		if err := enc.Encode(action); err != nil {
			return err
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode record %s: %w", rec.UserID, err)
		}
	}

	opts := []func(*esapi.BulkRequest){
		b.client.Bulk.WithIndex(b.index),
		b.client.Bulk.WithContext(ctx),
	}
	if b.refresh != "false" {
		opts = append(opts, b.client.Bulk.WithRefresh(b.refresh))
	}
	res, err := b.client.Bulk(&buf, opts...)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return decodeError(res)
	}

	var out bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if !out.Errors {
		return nil
	}
	for _, item := range out.Items {
		for op, r := range item {
			if r.Error != nil {
				return fmt.Errorf("bulk %s %s: %w", op, r.ID, r.Error)
			}
		}
	}
	return errors.New("bulk reported errors without item details")
}

func (b *Backend) ReadOne(ctx context.Context, id uuid.UUID) (*dataset.Record, error) {
	if b.closed.Load() {
		return nil, backend.ErrClosed
	}
	res, err := b.client.Get(b.index, id.String(), b.client.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elastic read one: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, backend.ErrNotFound
	}
	if res.IsError() {
		return nil, fmt.Errorf("elastic read one: %w", decodeError(res))
	}

	var doc struct {
		Found  bool            `json:"found"`
		Source *dataset.Record `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("elastic read one: decode: %w", err)
	}
	if !doc.Found || doc.Source == nil {
		return nil, backend.ErrNotFound
	}
	return doc.Source, nil
}

// Clean deletes the index. A missing index is not an error.
func (b *Backend) Clean(ctx context.Context) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	res, err := b.client.Indices.Delete([]string{b.index},
		b.client.Indices.Delete.WithIgnoreUnavailable(true),
		b.client.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elastic clean: %w", err)
	}
	if res.StatusCode == http.StatusNotFound {
		res.Body.Close()
		return nil
	}
	if err := checkResponse(res, "delete index"); err != nil {
		return fmt.Errorf("elastic clean: %w", err)
	}
	return nil
}

// Close marks the backend closed; the client keeps no resources to release.
func (b *Backend) Close() error {
	b.closed.Store(true)
	return nil
}

// APIError is the error object Elasticsearch returns in failed responses.
type APIError struct {
	Status int    `json:"-"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Type, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Reason)
}

// checkResponse closes the body and returns an *APIError for error statuses.
func checkResponse(res *esapi.Response, op string) error {
	defer res.Body.Close()
	if !res.IsError() {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	return fmt.Errorf("%s: %w", op, decodeError(res))
}

func decodeError(res *esapi.Response) error {
	var body struct {
		Error json.RawMessage `json:"error"`
	}
	apiErr := &APIError{Status: res.StatusCode, Type: http.StatusText(res.StatusCode)}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil || len(body.Error) == 0 {
		return apiErr
	}
	if err := json.Unmarshal(body.Error, apiErr); err != nil {
		// Some errors are plain strings.
		var msg string
		if json.Unmarshal(body.Error, &msg) == nil {
			apiErr.Reason = msg
		}
	}
	apiErr.Status = res.StatusCode
	return apiErr
}
