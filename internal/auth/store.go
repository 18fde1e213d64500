// Package auth validates operator API keys. Only SHA-256 digests of keys are
// persisted; the plaintext is shown once when the key is issued.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrMissingKey = errors.New("missing key")

// APIKeyStore validates API keys and provides a health ping.
type APIKeyStore interface {
	Validate(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
}

// APIKeyCreator is used by the admin handler.
type APIKeyCreator interface {
	Create(ctx context.Context, key string, active bool, owner string) error
	Revoke(ctx context.Context, key string) error
}

type cacheEntry struct {
	active    bool
	expiresAt time.Time
}

type MongoAPIKeyStore struct {
	coll     *mongo.Collection
	cacheTTL time.Duration
	mu       sync.RWMutex
	cache    map[string]cacheEntry
}

type apiKeyDoc struct {
	Hash      string    `bson:"hash"`
	Prefix    string    `bson:"prefix"`
	Active    bool      `bson:"active"`
	Owner     string    `bson:"owner,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

// NewMongoAPIKeyStore sets up the "api_keys" collection with a unique index
// on the key digest.
func NewMongoAPIKeyStore(ctx context.Context, client *mongo.Client, dbName string, ttl time.Duration) (*MongoAPIKeyStore, error) {
	coll := client.Database(dbName).Collection("api_keys")
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "hash", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}
	return &MongoAPIKeyStore{
		coll:     coll,
		cacheTTL: ttl,
		cache:    make(map[string]cacheEntry),
	}, nil
}

func (s *MongoAPIKeyStore) remember(hash string, active bool) {
	s.mu.Lock()
	s.cache[hash] = cacheEntry{active: active, expiresAt: time.Now().Add(s.cacheTTL)}
	s.mu.Unlock()
}

func (s *MongoAPIKeyStore) Validate(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrMissingKey
	}
	h := Hash(key)
	s.mu.RLock()
	ce, ok := s.cache[h]
	s.mu.RUnlock()
	if ok && time.Now().Before(ce.expiresAt) {
		return ce.active, nil
	}
	var doc apiKeyDoc
	err := s.coll.FindOne(ctx, bson.D{{Key: "hash", Value: h}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// negative results are cached too
			s.remember(h, false)
			return false, nil
		}
		return false, err
	}
	s.remember(h, doc.Active)
	return doc.Active, nil
}

func (s *MongoAPIKeyStore) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, nil)
}

// Create upserts the digest of key.
func (s *MongoAPIKeyStore) Create(ctx context.Context, key string, active bool, owner string) error {
	if key == "" {
		return ErrMissingKey
	}
	h := Hash(key)
	_, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "hash", Value: h}},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "active", Value: active}, {Key: "owner", Value: owner}, {Key: "prefix", Value: h[:8]}}},
			{Key: "$setOnInsert", Value: bson.D{{Key: "created_at", Value: time.Now().UTC()}}},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return err
	}
	s.remember(h, active)
	return nil
}

// Revoke deactivates key. Unknown keys are not an error.
func (s *MongoAPIKeyStore) Revoke(ctx context.Context, key string) error {
	if key == "" {
		return ErrMissingKey
	}
	h := Hash(key)
	if _, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "hash", Value: h}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "active", Value: false}}}},
	); err != nil {
		return err
	}
	s.remember(h, false)
	return nil
}

// NewKey returns a random 32-byte hex key.
func NewKey() string {
	var b [32]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// Hash is the hex SHA-256 of key.
func Hash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// HashPrefix returns the first 8 hex chars of Hash(key) for logging.
func HashPrefix(key string) string { return Hash(key)[:8] }
