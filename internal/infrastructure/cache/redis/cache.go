package redis

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
)

const keyPrefix = "emi:prediction:"

// PredictionCache stores raw model outputs keyed by model version and a digest of the input
// vector, so a promoted version never serves answers cached for its predecessor.
type PredictionCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func New(addr, password string, db int, ttl time.Duration) *PredictionCache {
	return NewWithClient(goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), ttl)
}

func NewWithClient(client *goredis.Client, ttl time.Duration) *PredictionCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &PredictionCache{client: client, ttl: ttl}
}

func (c *PredictionCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *PredictionCache) Close() error {
	return c.client.Close()
}

type entry struct {
	Value any `json:"v"`
}

func (c *PredictionCache) Get(ctx context.Context, version domain.ModelVersion, vector domain.FeatureVector) (domain.RawPrediction, bool, error) {
	raw, err := c.client.Get(ctx, Key(version, vector)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.RawPrediction{}, false, nil
	}
	if err != nil {
		return domain.RawPrediction{}, false, domain.WrapError(domain.ErrTemporary, "redis get", err)
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return domain.RawPrediction{}, false, fmt.Errorf("decode cached prediction: %w", err)
	}
	return domain.RawPrediction{Value: e.Value}, true, nil
}

func (c *PredictionCache) Set(ctx context.Context, version domain.ModelVersion, vector domain.FeatureVector, p domain.RawPrediction) error {
	raw, err := json.Marshal(entry{Value: p.Value})
	if err != nil {
		return fmt.Errorf("encode prediction: %w", err)
	}
	if err := c.client.Set(ctx, Key(version, vector), raw, c.ttl).Err(); err != nil {
		return domain.WrapError(domain.ErrTemporary, "redis set", err)
	}
	return nil
}

// Key returns the cache key for a model version and input vector.
func Key(version domain.ModelVersion, vector domain.FeatureVector) string {
	return keyPrefix + version.Name + ":" + version.Version + ":" + strconv.FormatUint(Digest(vector), 16)
}

// Digest hashes column names, kinds and values in order.
func Digest(vector domain.FeatureVector) uint64 {
	h := xxhash.New()
	var buf [8]byte
	for i, column := range vector.Columns {
		_, _ = h.WriteString(column)
		_, _ = h.Write([]byte{0})
		if i >= len(vector.Values) {
			continue
		}
		v := vector.Values[i]
		_, _ = h.WriteString(string(v.Kind))
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v.Float()))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}
