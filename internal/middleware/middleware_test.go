package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/radio-slot-reservation/internal/config"
	"github.com/iliyamo/radio-slot-reservation/internal/utils"
)

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func serve(mw []echo.MiddlewareFunc, req *http.Request) *httptest.ResponseRecorder {
	e := echo.New()
	e.GET("/v1/channels", okHandler, mw...)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRequireRole(t *testing.T) {
	const secret = "s3cret"
	planner, err := utils.NewAccessToken(secret, utils.Claims{UserID: 7, Role: "PLANNER", Name: "Ayşe"}, 5)
	require.NoError(t, err)
	viewer, err := utils.NewAccessToken(secret, utils.Claims{UserID: 8, Role: "VIEWER", Name: "Can"}, 5)
	require.NoError(t, err)

	var seenName string
	var seenID uint64
	capture := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			seenName = UserName(c)
			seenID, _ = c.Get(CtxUserID).(uint64)
			return next(c)
		}
	}
	chain := []echo.MiddlewareFunc{JWTAuth(secret), RequireRole("PLANNER"), capture}

	cases := []struct {
		name   string
		header string
		code   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"viewer", "Bearer " + viewer.Token, http.StatusForbidden},
		{"planner", "Bearer " + planner.Token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/channels", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := serve(chain, req)
			assert.Equal(t, tc.code, rec.Code)
		})
	}
	assert.Equal(t, "Ayşe", seenName)
	assert.Equal(t, uint64(7), seenID)
}

func TestJWTAuth_WrongSecret(t *testing.T) {
	tok, err := utils.NewAccessToken("other", utils.Claims{UserID: 1, Role: "PLANNER"}, 5)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/v1/channels", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := serve([]echo.MiddlewareFunc{JWTAuth("s3cret")}, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.5")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/reservations")

	cfg := config.RateLimitConfig{Prefix: "rl"}

	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:ip:10.0.0.5", rateKey(cfg, c))

	cfg.KeyStrategy = "USER_route"
	assert.Equal(t, "rl:user:guest:route:POST /v1/reservations", rateKey(cfg, c))

	c.Set(CtxUserID, uint64(42))
	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:42", rateKey(cfg, c))

	cfg.KeyStrategy = "nonsense"
	assert.Equal(t, "rl:ip:10.0.0.5:user:42:route:POST /v1/reservations", rateKey(cfg, c))
}

func TestRedisBackedMiddleware_PassThroughWithoutClient(t *testing.T) {
	log := logrus.New()
	rl := NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second}, nil, log)
	cache := NewCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "cache"}, nil, log)

	for i := 0; i < 3; i++ {
		rec := serve([]echo.MiddlewareFunc{rl, cache.Middleware("channels")}, httptest.NewRequest(http.MethodGet, "/v1/channels", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Cache"))
		assert.Empty(t, rec.Header().Get("X-RateLimit-Remaining"))
	}

	// no client: a no-op, not a panic
	cache.Invalidate(t.Context(), "channels")
	var nilCache *Cache
	nilCache.Invalidate(t.Context(), "channels")
}

func TestCacheKey(t *testing.T) {
	e := echo.New()
	mk := func(target string) echo.Context {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/v1/channels/prices")
		return c
	}
	ca := &Cache{cfg: config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}}

	a := ca.key("channels", mk("/v1/channels/prices?year=2026"))
	b := ca.key("channels", mk("/v1/channels/prices?year=2025"))
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^cache:channels:[0-9a-f]{40}$`, a)

	ca.cfg.KeyStrategy = "route"
	assert.Equal(t, ca.key("channels", mk("/v1/channels/prices?year=2026")), ca.key("channels", mk("/v1/channels/prices?year=2025")))
}

func TestCacheEntryLayout(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	raw, err := packEntry(http.StatusOK, hdr, []byte(`{"items":[]}`))
	require.NoError(t, err)

	status, got, body, ok := unpackEntry(raw)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"items":[]}`, string(body))

	_, _, _, ok = unpackEntry(raw[:5])
	assert.False(t, ok)
	_, _, _, ok = unpackEntry(append([]byte{0, 0, 0, 200, 0, 0, 1, 0}, 'x'))
	assert.False(t, ok)
}

func TestRecorderOverflow(t *testing.T) {
	rec := &recorder{ResponseWriter: httptest.NewRecorder(), limit: 4}
	_, _ = rec.Write([]byte("abc"))
	assert.False(t, rec.overflow)
	_, _ = rec.Write([]byte("de"))
	assert.True(t, rec.overflow)
	assert.Zero(t, rec.body.Len())
}
