package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/radio-slot-reservation/internal/config"
)

// The response cache serves reference data (channel list, rate cards).
// Rollups are never routed through it: every rollup must reflect the
// reservations stored at the time of the call.

// recorder forwards the response to the client and keeps a copy of up to
// limit bytes.  overflow is set when the body outgrew the limit.
type recorder struct {
	http.ResponseWriter
	status   int
	body     bytes.Buffer
	limit    int
	overflow bool
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.overflow {
		if r.limit > 0 && r.body.Len()+len(b) > r.limit {
			r.overflow = true
			r.body.Reset()
		} else {
			r.body.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}

// Cache caches successful responses of one namespace in Redis.
type Cache struct {
	cfg config.CacheConfig
	rdb *redis.Client
	log logrus.FieldLogger
}

// NewCache returns a Cache.  A nil client or a disabled config turns the
// cache into a no-op.
func NewCache(cfg config.CacheConfig, rdb *redis.Client, log logrus.FieldLogger) *Cache {
	return &Cache{cfg: cfg, rdb: rdb, log: log}
}

func (ca *Cache) enabled() bool { return ca != nil && ca.cfg.Enabled && ca.rdb != nil }

// Middleware caches responses under namespace.  Keys are derived from the
// route and query string; see config.CacheConfig.KeyStrategy.
func (ca *Cache) Middleware(namespace string) echo.MiddlewareFunc {
	if !ca.enabled() {
		return passThrough
	}
	ttl := ca.cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !ca.cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := ca.key(namespace, c)

			if raw, err := ca.rdb.Get(ctx, key).Bytes(); err == nil {
				if status, hdr, body, ok := unpackEntry(raw); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, echo.HeaderContentLength) {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					_, err := c.Response().Write(body)
					return err
				}
			}

			rec := &recorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: ca.cfg.MaxBodyBytes}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.overflow {
				return nil
			}
			entry, err := packEntry(rec.status, c.Response().Header().Clone(), rec.body.Bytes())
			if err != nil {
				return nil
			}
			if err := ca.rdb.Set(context.Background(), key, entry, ttl).Err(); err != nil {
				ca.log.WithError(err).WithField("key", key).Warn("cache: store failed")
			}
			return nil
		}
	}
}

// Invalidate drops every cached entry of namespace.  It is called after
// writes that change the cached reference data.
func (ca *Cache) Invalidate(ctx context.Context, namespace string) {
	if !ca.enabled() {
		return
	}
	pattern := ca.cfg.Prefix + ":" + namespace + ":*"
	iter := ca.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		ca.log.WithError(err).WithField("namespace", namespace).Warn("cache: scan failed")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := ca.rdb.Del(ctx, keys...).Err(); err != nil {
		ca.log.WithError(err).WithField("namespace", namespace).Warn("cache: invalidate failed")
	}
}

// key hashes the request identity so long query strings stay short.
func (ca *Cache) key(namespace string, c echo.Context) string {
	r := c.Request()
	var ident string
	switch strings.ToLower(ca.cfg.KeyStrategy) {
	case "route":
		ident = c.Path()
	case "method_route":
		ident = r.Method + " " + c.Path()
	case "method_route_query":
		ident = r.Method + " " + r.URL.Path + "?" + r.URL.RawQuery
	default: // route_query
		ident = r.URL.Path + "?" + r.URL.RawQuery
	}
	sum := sha1.Sum([]byte(ident))
	return fmt.Sprintf("%s:%s:%x", ca.cfg.Prefix, namespace, sum[:])
}

// packEntry lays out an entry as [status u32][header len u32][header JSON][body].
func packEntry(status int, header http.Header, body []byte) ([]byte, error) {
	hdr, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8, 8+len(hdr)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdr)))
	out = append(out, hdr...)
	return append(out, body...), nil
}

func unpackEntry(b []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(b) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(b[0:4]))
	n := int(binary.BigEndian.Uint32(b[4:8]))
	if n < 0 || 8+n > len(b) {
		return 0, nil, nil, false
	}
	header = http.Header{}
	if n > 0 {
		if err := json.Unmarshal(b[8:8+n], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, b[8+n:], true
}
