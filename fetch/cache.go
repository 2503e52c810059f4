// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"go.uber.org/zap"

	"github.com/fusionml/shotarchive/shot"
)

// cacheTTL keeps entries around long enough for a relaunched run to
// pick up where the crashed one left off.
const cacheTTL = 48 * time.Hour

// CachingClient wraps another client with a redis cache keyed on
// (shot, request name). Archived shots are immutable once taken, so
// entries never need invalidation, only expiry.
type CachingClient struct {
	next Client
	rdb  *redis.Client
	log  *zap.Logger
}

func NewCachingClient(next Client, addr string, log *zap.Logger) *CachingClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachingClient{
		next: next,
		rdb:  redis.NewClient(&redis.Options{Addr: addr}),
		log:  log,
	}
}

func cacheKey(shotNum int, name string) string {
	return fmt.Sprintf("sig:%d:%s", shotNum, name)
}

func (c *CachingClient) Fetch(ctx context.Context, shotNum int, req Request) (*shot.Signal, error) {
	key := cacheKey(shotNum, req.Name)

	if data, err := c.rdb.Get(key).Bytes(); err == nil {
		var s shot.Signal
		if err := json.Unmarshal(data, &s); err == nil {
			return &s, nil
		}
		c.log.Warn("dropping corrupt cache entry", zap.String("key", key))
		c.rdb.Del(key)
	} else if err != redis.Nil {
		c.log.Warn("cache unavailable", zap.Error(err))
	}

	s, err := c.next.Fetch(ctx, shotNum, req)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(s); err == nil {
		if err := c.rdb.Set(key, data, cacheTTL).Err(); err != nil {
			c.log.Warn("cache write failed", zap.Error(err))
		}
	}
	return s, nil
}

func (c *CachingClient) Close() error {
	return c.rdb.Close()
}
