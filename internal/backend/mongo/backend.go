// Package mongo provides a MongoDB benchmark backend.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/dataset"
)

const (
	KeyURI            = "uri"
	KeyDatabase       = "database"
	KeyCollection     = "collection"
	KeyPageSize       = "page_size"
	KeyConnectTimeout = "connect_timeout"
)

func init() {
	backend.Register("mongo", NewFactory, Defaults)
}

// Defaults returns the default configuration for the MongoDB backend.
func Defaults() backend.Config {
	return backend.Config{
		KeyURI:            "mongodb://localhost:27017",
		KeyDatabase:       "test",
		KeyCollection:     "test",
		KeyPageSize:       "5000",
		KeyConnectTimeout: "10s",
	}
}

// NewFactory connects and pings the primary.
func NewFactory(ctx context.Context, cfg backend.Config) (backend.Backend, error) {
	uri := cfg.String(KeyURI, "")
	if uri == "" {
		return nil, backend.NewConfigError("mongo", KeyURI, "cannot be empty")
	}
	database := cfg.String(KeyDatabase, "test")
	collection := cfg.String(KeyCollection, "test")
	pageSize, err := cfg.PositiveInt("mongo", KeyPageSize, backend.DefaultPageSize)
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.Duration("mongo", KeyConnectTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetConnectTimeout(timeout))
	if err != nil {
		return nil, backend.NewConfigErrorWithCause("mongo", KeyURI, "failed to create client", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, backend.NewConfigErrorWithCause("mongo", KeyURI, "failed to connect", err)
	}

	slog.Info("mongo backend initialized", "database", database, "collection", collection, "page_size", pageSize)
	return &Backend{
		client:   client,
		coll:     client.Database(database).Collection(collection),
		pageSize: pageSize,
	}, nil
}

// Backend stores one document per record with ids as strings.
type Backend struct {
	client   *mongo.Client
	coll     *mongo.Collection
	pageSize int
	closed   atomic.Bool
}

type document struct {
	UserID    string   `bson:"user_id"`
	Likes     []string `bson:"likes"`
	Dislikes  []string `bson:"dislikes"`
	Bookmarks []string `bson:"bookmarks"`
	Score     float64  `bson:"score"`
}

func toDocument(rec *dataset.Record) document {
	return document{
		UserID:    rec.UserID.String(),
		Likes:     idStrings(rec.Likes),
		Dislikes:  idStrings(rec.Dislikes),
		Bookmarks: idStrings(rec.Bookmarks),
		Score:     rec.Score,
	}
}

func (d document) record() (*dataset.Record, error) {
	id, err := uuid.Parse(d.UserID)
	if err != nil {
		return nil, fmt.Errorf("user id %q: %w", d.UserID, err)
	}
	rec := &dataset.Record{UserID: id, Score: d.Score}
	for _, c := range []struct {
		src []string
		dst *[]uuid.UUID
	}{{d.Likes, &rec.Likes}, {d.Dislikes, &rec.Dislikes}, {d.Bookmarks, &rec.Bookmarks}} {
		ids, err := parseIDs(c.src)
		if err != nil {
			return nil, err
		}
		*c.dst = ids
	}
	return rec, nil
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseIDs(ss []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, len(ss))
	for i, s := range ss {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("list id %q: %w", s, err)
		}
		out[i] = id
	}
	return out, nil
}

// Setup creates the unique user_id index, which also creates the collection.
func (b *Backend) Setup(ctx context.Context) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	_, err := b.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo setup: %w", err)
	}
	return nil
}

func (b *Backend) WriteOne(ctx context.Context, rec *dataset.Record) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	if _, err := b.coll.InsertOne(ctx, toDocument(rec)); err != nil {
		return fmt.Errorf("mongo write one: %w", err)
	}
	return nil
}

// WriteMany issues one unordered InsertMany per page.
func (b *Backend) WriteMany(ctx context.Context, recs []*dataset.Record) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	opts := options.InsertMany().SetOrdered(false)
	for _, page := range backend.Pages(recs, b.pageSize) {
		docs := make([]any, len(page))
		for i, rec := range page {
			docs[i] = toDocument(rec)
		}
		if _, err := b.coll.InsertMany(ctx, docs, opts); err != nil {
			return fmt.Errorf("mongo write many: %w", err)
		}
	}
	return nil
}

func (b *Backend) ReadOne(ctx context.Context, id uuid.UUID) (*dataset.Record, error) {
	if b.closed.Load() {
		return nil, backend.ErrClosed
	}
	var doc document
	err := b.coll.FindOne(ctx, bson.M{"user_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo read one: %w", err)
	}
	rec, err := doc.record()
	if err != nil {
		return nil, fmt.Errorf("mongo read one: %w", err)
	}
	return rec, nil
}

func (b *Backend) Clean(ctx context.Context) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	if err := b.coll.Drop(ctx); err != nil {
		return fmt.Errorf("mongo clean: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.client.Disconnect(ctx)
}
