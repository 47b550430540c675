package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
)

func newTestCache(t *testing.T) (*PredictionCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)
	return NewWithClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), time.Minute), mr
}

func vector(age float64) domain.FeatureVector {
	return domain.FeatureVector{
		Columns: []string{"age", "gender_Male"},
		Values:  []domain.FeatureValue{domain.Number(age), domain.Flag(true)},
	}
}

func TestCacheRoundTripPerVersion(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	v3 := domain.ModelVersion{Name: "clf", Version: "3"}
	v4 := domain.ModelVersion{Name: "clf", Version: "4"}

	if _, ok, err := cache.Get(ctx, v3, vector(30)); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := cache.Set(ctx, v3, vector(30), domain.RawPrediction{Value: "Eligible"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := cache.Get(ctx, v3, vector(30))
	if err != nil || !ok || got.Value != "Eligible" {
		t.Fatalf("expected cached Eligible, got %v %v %v", got.Value, ok, err)
	}
	if _, ok, _ := cache.Get(ctx, v4, vector(30)); ok {
		t.Fatalf("a new model version must not see old entries")
	}
	if _, ok, _ := cache.Get(ctx, v3, vector(31)); ok {
		t.Fatalf("a different vector must miss")
	}

	if ttl := mr.TTL(Key(v3, vector(30))); ttl != time.Minute {
		t.Fatalf("expected one minute ttl, got %v", ttl)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := cache.Get(ctx, v3, vector(30)); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestCacheNumericValues(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	version := domain.ModelVersion{Name: "reg", Version: "1"}

	if err := cache.Set(ctx, version, vector(40), domain.RawPrediction{Value: 18250.46}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := cache.Get(ctx, version, vector(40))
	if err != nil || !ok {
		t.Fatalf("expected hit, got %v %v", ok, err)
	}
	if v, err := got.Float(); err != nil || v != 18250.46 {
		t.Fatalf("expected 18250.46, got %v %v", v, err)
	}
}

func TestCacheUnavailableIsTemporary(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	cache := NewWithClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1}), time.Minute)
	mr.Close()

	_, _, err = cache.Get(context.Background(), domain.ModelVersion{Name: "clf", Version: "1"}, vector(30))
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestDigestDistinguishesKindsAndOrder(t *testing.T) {
	a := domain.FeatureVector{Columns: []string{"x", "y"}, Values: []domain.FeatureValue{domain.Number(1), domain.Number(0)}}
	b := domain.FeatureVector{Columns: []string{"y", "x"}, Values: []domain.FeatureValue{domain.Number(0), domain.Number(1)}}
	c := domain.FeatureVector{Columns: []string{"x", "y"}, Values: []domain.FeatureValue{domain.Flag(true), domain.Number(0)}}
	if Digest(a) == Digest(b) || Digest(a) == Digest(c) {
		t.Fatalf("digest must depend on column order and kind")
	}
	if Digest(a) != Digest(domain.FeatureVector{Columns: []string{"x", "y"}, Values: []domain.FeatureValue{domain.Number(1), domain.Number(0)}}) {
		t.Fatalf("digest must be stable")
	}
}
