package ingress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vowcast/backend/internal/live"
)

// ErrUnknownStreamKey is returned when a stream key resolves to no wedding.
var ErrUnknownStreamKey = errors.New("unknown stream key")

// Provider issues ingest credentials and resolves stream keys. Keys live in
// redis so every controller instance can resolve signals from the ingest
// provider.
type Provider struct {
	rdb       *redis.Client
	serverURL string
	ttl       time.Duration
	log       *zap.Logger
}

// NewProvider creates an ingress credential provider.
func NewProvider(rdb *redis.Client, serverURL string, ttlHours int, log *zap.Logger) *Provider {
	if ttlHours <= 0 {
		ttlHours = 24
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{
		rdb:       rdb,
		serverURL: serverURL,
		ttl:       time.Duration(ttlHours) * time.Hour,
		log:       log,
	}
}

func streamKeyRedisKey(streamKey string) string {
	return "ingress:key:" + streamKey
}

// IssueCredentials allocates an opaque stream key for the wedding and returns
// the ingest endpoint.
func (p *Provider) IssueCredentials(ctx context.Context, weddingID uuid.UUID) (*live.IngressCredentials, error) {
	streamKey := strings.ReplaceAll(uuid.New().String(), "-", "")
	if err := p.rdb.Set(ctx, streamKeyRedisKey(streamKey), weddingID.String(), p.ttl).Err(); err != nil {
		return nil, fmt.Errorf("store stream key: %w", err)
	}
	p.log.Info("ingress credentials issued", zap.String("wedding_id", weddingID.String()))
	return &live.IngressCredentials{
		IngestURL: p.serverURL,
		StreamKey: streamKey,
	}, nil
}

// ResolveStreamKey returns the wedding a stream key was issued for.
func (p *Provider) ResolveStreamKey(ctx context.Context, streamKey string) (uuid.UUID, error) {
	val, err := p.rdb.Get(ctx, streamKeyRedisKey(streamKey)).Result()
	if err != nil {
		if err == redis.Nil {
			return uuid.Nil, ErrUnknownStreamKey
		}
		return uuid.Nil, fmt.Errorf("resolve stream key: %w", err)
	}
	weddingID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt stream key mapping: %w", err)
	}
	return weddingID, nil
}
