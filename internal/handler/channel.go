package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/radio-slot-reservation/internal/model"
)

// ChannelStore is the reference data behind the channel endpoints.
// *repository.ChannelRepo satisfies it.
type ChannelStore interface {
	ListChannels(ctx context.Context, activeOnly bool) ([]model.Channel, error)
	ListPrices(ctx context.Context, year int, advertiser string) ([]model.ChannelPrice, error)
	UpsertChannelPrice(ctx context.Context, p model.ChannelPrice) error
}

// AccessReader reads reach figures.  *repository.AccessRepo satisfies it.
type AccessReader interface {
	AccessRatio(ctx context.Context, channel, window string) (*float64, error)
}

// CacheInvalidator drops cached responses of a namespace.
// *middleware.Cache satisfies it.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, namespace string)
}

// ChannelCacheNamespace groups the cached channel and rate-card responses.
const ChannelCacheNamespace = "channels"

type ChannelHandler struct {
	Channels ChannelStore
	Reach    AccessReader
	Cache    CacheInvalidator
	now      func() time.Time
}

// NewChannelHandler wires the channel endpoints.  cache may be nil.
func NewChannelHandler(channels ChannelStore, access AccessReader, cache CacheInvalidator) *ChannelHandler {
	return &ChannelHandler{Channels: channels, Reach: access, Cache: cache, now: time.Now}
}

// List handles GET /v1/channels?active=.
func (h *ChannelHandler) List(c echo.Context) error {
	active, ok := queryBool(c, "active", false)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid active flag"})
	}
	list, err := h.Channels.ListChannels(c.Request().Context(), active)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// Prices handles GET /v1/channels/prices?year=&advertiser=.  The year
// defaults to the current one.
func (h *ChannelHandler) Prices(c echo.Context) error {
	year, ok := queryInt(c, "year", h.now().Year())
	if !ok || year < 2000 || year > 2100 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid year"})
	}
	advertiser := strings.TrimSpace(c.QueryParam("advertiser"))
	rows, err := h.Channels.ListPrices(c.Request().Context(), year, advertiser)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"year": year, "advertiser": advertiser, "items": rows})
}

type priceReq struct {
	Advertiser string          `json:"advertiser" validate:"max=255"`
	Year       int             `json:"year" validate:"required,gte=2000,lte=2100"`
	Month      int             `json:"month" validate:"required,gte=1,lte=12"`
	DTRate     decimal.Decimal `json:"dt_rate"`
	ODTRate    decimal.Decimal `json:"odt_rate"`
}

// UpsertPrice handles PUT /v1/channels/:channel/prices.  Cached channel
// responses are dropped on success.
func (h *ChannelHandler) UpsertPrice(c echo.Context) error {
	id, ok := pathID(c, "channel")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid channel id"})
	}
	var req priceReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if req.DTRate.IsNegative() || req.ODTRate.IsNegative() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rates must not be negative"})
	}
	p := model.ChannelPrice{
		ChannelID:  id,
		Advertiser: strings.TrimSpace(req.Advertiser),
		Year:       req.Year,
		Month:      time.Month(req.Month),
		DTRate:     req.DTRate,
		ODTRate:    req.ODTRate,
	}
	ctx := c.Request().Context()
	if err := h.Channels.UpsertChannelPrice(ctx, p); err != nil {
		return writeError(c, err)
	}
	if h.Cache != nil {
		h.Cache.Invalidate(ctx, ChannelCacheNamespace)
	}
	return c.JSON(http.StatusOK, p)
}

// Access handles GET /v1/channels/:channel/access?window=.  ratio is null
// when nothing was recorded.
func (h *ChannelHandler) Access(c echo.Context) error {
	window := strings.TrimSpace(c.QueryParam("window"))
	if window == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "window is required"})
	}
	name := nameParam(c, "channel")
	ratio, err := h.Reach.AccessRatio(c.Request().Context(), name, window)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"channel": name, "window": window, "ratio": ratio})
}
