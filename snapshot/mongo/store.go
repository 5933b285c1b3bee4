// Package mongo provides a MongoDB implementation of snapshot.Store.
//
// Each property is stored as its wire encoding (tag then payload) so the
// documents decode back into the exact values that were listed.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/exmdb/propval"
	"github.com/rbaliyan/exmdb/snapshot"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
)

var _ snapshot.Store = (*Store)(nil)

// Store implements snapshot.Store using MongoDB.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	opts       *options
	connected  int32
	logger     *slog.Logger
}

// New creates a store on client. Call Connect to create the indexes.
func New(client *mongo.Client, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		client: client,
		opts:   o,
		logger: o.logger,
	}
}

// Connect pings the server and creates the indexes.
func (s *Store) Connect(ctx context.Context) error {
	if atomic.LoadInt32(&s.connected) == 1 {
		return snapshot.ErrAlreadyConnected
	}

	if s.client == nil {
		return fmt.Errorf("mongo: client is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}

	s.collection = s.client.Database(s.opts.database).Collection(s.opts.collection)

	if err := s.ensureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	atomic.StoreInt32(&s.connected, 1)
	s.logger.Info("connected to MongoDB", "database", s.opts.database, "collection", s.opts.collection)
	return nil
}

// Close marks the store as disconnected.
// The caller is responsible for closing the MongoDB client.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{
			bson.E{Key: "prefix", Value: 1},
			bson.E{Key: "path", Value: 1},
			bson.E{Key: "taken_at", Value: -1},
		}},
	}
	_, err := s.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return snapshot.ErrNotConnected
	}
	return nil
}

// snapshotDoc is the stored document. Rows hold one wire-encoded
// property per element.
type snapshotDoc struct {
	ID      string     `bson:"_id"`
	Addr    string     `bson:"addr"`
	Prefix  string     `bson:"prefix"`
	Path    string     `bson:"path"`
	TakenAt time.Time  `bson:"taken_at"`
	Rows    [][][]byte `bson:"rows"`
}

func toDoc(snap *snapshot.Snapshot) (*snapshotDoc, error) {
	doc := &snapshotDoc{
		ID:      snap.ID,
		Addr:    snap.Addr,
		Prefix:  snap.Prefix,
		Path:    snap.Path,
		TakenAt: snap.TakenAt,
		Rows:    make([][][]byte, len(snap.Rows)),
	}
	for i, row := range snap.Rows {
		doc.Rows[i] = make([][]byte, len(row))
		for j, tp := range row {
			data, err := tp.MarshalBinary()
			if err != nil {
				return nil, fmt.Errorf("encode row %d: %w", i, err)
			}
			doc.Rows[i][j] = data
		}
	}
	return doc, nil
}

func (d *snapshotDoc) snapshot() (*snapshot.Snapshot, error) {
	snap := &snapshot.Snapshot{
		ID:      d.ID,
		Addr:    d.Addr,
		Prefix:  d.Prefix,
		Path:    d.Path,
		TakenAt: d.TakenAt.UTC(),
		Rows:    make([]propval.Row, len(d.Rows)),
	}
	for i, row := range d.Rows {
		snap.Rows[i] = make(propval.Row, len(row))
		for j, data := range row {
			if err := snap.Rows[i][j].UnmarshalBinary(data); err != nil {
				return nil, fmt.Errorf("decode row %d: %w", i, err)
			}
		}
	}
	return snap, nil
}

// Save inserts snap. A duplicate id is ErrAlreadyExists.
func (s *Store) Save(ctx context.Context, snap *snapshot.Snapshot) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	} else if !snapshot.ValidID(snap.ID) {
		return snapshot.ErrInvalidID
	}

	doc, err := toDoc(snap)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return snapshot.ErrAlreadyExists
		}
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Get loads the snapshot with the given id.
func (s *Store) Get(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if !snapshot.ValidID(id) {
		return nil, snapshot.ErrInvalidID
	}
	return s.findOne(ctx, bson.M{"_id": id})
}

// Latest loads the newest snapshot of path on prefix.
func (s *Store) Latest(ctx context.Context, prefix, path string) (*snapshot.Snapshot, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	return s.findOne(ctx, bson.M{"prefix": prefix, "path": path},
		mongoopts.FindOne().SetSort(bson.D{bson.E{Key: "taken_at", Value: -1}}))
}

func (s *Store) findOne(ctx context.Context, filter bson.M, opts ...mongoopts.Lister[mongoopts.FindOneOptions]) (*snapshot.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var doc snapshotDoc
	if err := s.collection.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, snapshot.ErrNotFound
		}
		return nil, fmt.Errorf("find snapshot: %w", err)
	}
	return doc.snapshot()
}

// Delete removes the snapshot with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if !snapshot.ValidID(id) {
		return snapshot.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	if res.DeletedCount == 0 {
		return snapshot.ErrNotFound
	}
	return nil
}
