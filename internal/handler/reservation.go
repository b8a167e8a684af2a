package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/radio-slot-reservation/internal/codes"
	"github.com/iliyamo/radio-slot-reservation/internal/middleware"
	"github.com/iliyamo/radio-slot-reservation/internal/model"
	"github.com/iliyamo/radio-slot-reservation/internal/schedule"
	"github.com/iliyamo/radio-slot-reservation/internal/service"
)

// ReservationService is the lifecycle used by ReservationHandler.
// *service.ReservationService satisfies it.
type ReservationService interface {
	Confirm(ctx context.Context, d model.Draft, cells model.CellAssignments) (*model.Reservation, error)
	Preview(ctx context.Context, d model.Draft, cells model.CellAssignments) (*model.Reservation, error)
	GetCellMatrix(ctx context.Context, id int64) (*service.CellMatrix, error)
	Delete(ctx context.Context, id int64) error
	DeleteMany(ctx context.Context, ids []int64) (int64, error)
	DeleteBySpotCode(ctx context.Context, advertiser, spotCode string) (int64, error)
	ListByAdvertiser(ctx context.Context, advertiser string, confirmedOnly bool, limit int) ([]*model.Reservation, error)
	SearchAdvertisers(ctx context.Context, q string, limit int) ([]string, error)
}

// ReservationHandler serves the reservation and advertiser endpoints.
type ReservationHandler struct {
	Svc ReservationService
}

func NewReservationHandler(svc ReservationService) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{Svc: svc}
}

// draftReq is the body of confirm and preview.
type draftReq struct {
	AdvertiserName string `json:"advertiser_name" validate:"required,max=255"`
	AgencyName     string `json:"agency_name" validate:"max=255"`
	ProductName    string `json:"product_name" validate:"max=255"`
	PlanTitle      string `json:"plan_title" validate:"required,max=255"`
	ChannelName    string `json:"channel_name" validate:"max=128"`

	PlanDate  string `json:"plan_date" validate:"required,datetime=2006-01-02"`
	SpanStart string `json:"span_start" validate:"omitempty,datetime=2006-01-02"`
	SpanEnd   string `json:"span_end" validate:"omitempty,datetime=2006-01-02"`

	SpotTime        string      `json:"spot_time" validate:"omitempty,datetime=15:04"`
	SpotCode        string      `json:"spot_code" validate:"max=32"`
	SpotDurationSec int         `json:"spot_duration_sec" validate:"gte=0"`
	CodeDefinition  string      `json:"code_definition"`
	CodeDefs        []codes.Def `json:"code_defs" validate:"dive"`

	NoteText string `json:"note_text"`

	ChannelPriceDT      decimal.Decimal `json:"channel_price_dt"`
	ChannelPriceODT     decimal.Decimal `json:"channel_price_odt"`
	AgencyCommissionPct *int            `json:"agency_commission_pct" validate:"omitempty,gte=0,lte=100"`

	PlanCells  map[string]string            `json:"plan_cells"`
	MonthCells map[string]map[string]string `json:"span_month_matrices"`
}

// defaultCommissionPct applies when a draft names no commission.
const defaultCommissionPct = 10

func (r draftReq) toDraft(preparedBy string) (model.Draft, model.CellAssignments, error) {
	d := model.Draft{
		AdvertiserName:      r.AdvertiserName,
		AgencyName:          r.AgencyName,
		ProductName:         r.ProductName,
		PlanTitle:           r.PlanTitle,
		ChannelName:         r.ChannelName,
		SpotCode:            r.SpotCode,
		SpotDurationSec:     r.SpotDurationSec,
		CodeDefinition:      r.CodeDefinition,
		CodeDefs:            r.CodeDefs,
		NoteText:            r.NoteText,
		PreparedByName:      preparedBy,
		ChannelPriceDT:      r.ChannelPriceDT,
		ChannelPriceODT:     r.ChannelPriceODT,
		AgencyCommissionPct: defaultCommissionPct,
	}
	if r.AgencyCommissionPct != nil {
		d.AgencyCommissionPct = *r.AgencyCommissionPct
	}
	var err error
	if d.PlanDate, err = schedule.ParseDate(r.PlanDate); err != nil {
		return d, model.CellAssignments{}, err
	}
	if (r.SpanStart == "") != (r.SpanEnd == "") {
		return d, model.CellAssignments{}, errors.New("span_start and span_end must be given together")
	}
	if r.SpanStart != "" {
		start, err := schedule.ParseDate(r.SpanStart)
		if err != nil {
			return d, model.CellAssignments{}, err
		}
		end, err := schedule.ParseDate(r.SpanEnd)
		if err != nil {
			return d, model.CellAssignments{}, err
		}
		span := schedule.NewDateSpan(start, end)
		d.Span = &span
	}
	if r.SpotTime != "" {
		if d.SpotTime, err = schedule.ParseTimeOfDay(r.SpotTime); err != nil {
			return d, model.CellAssignments{}, err
		}
	}
	return d, model.CellAssignments{PlanCells: r.PlanCells, MonthCells: r.MonthCells}, nil
}

// reservationResp is the stored view of a reservation.
type reservationResp struct {
	ID            int64         `json:"id,omitempty"`
	ReservationNo string        `json:"reservation_no"`
	Status        model.Status  `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	Payload       model.Payload `json:"payload"`
}

func toResp(r *model.Reservation) reservationResp {
	return reservationResp{
		ID:            r.ID,
		ReservationNo: r.ReservationNo,
		Status:        r.Status,
		CreatedAt:     r.CreatedAt,
		Payload:       model.PayloadOf(r),
	}
}

func (h *ReservationHandler) bindDraft(c echo.Context) (model.Draft, model.CellAssignments, bool, error) {
	var req draftReq
	if ok, err := bindValid(c, &req); !ok {
		return model.Draft{}, model.CellAssignments{}, false, err
	}
	d, cells, err := req.toDraft(middleware.UserName(c))
	if err != nil {
		return d, cells, false, c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return d, cells, true, nil
}

// Confirm handles POST /v1/reservations.  It returns 201 with the
// numbered reservation.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	d, cells, ok, err := h.bindDraft(c)
	if !ok {
		return err
	}
	r, err := h.Svc.Confirm(c.Request().Context(), d, cells)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toResp(r))
}

// Preview handles POST /v1/reservations/preview.  Nothing is stored and
// the reservation number stays empty.
func (h *ReservationHandler) Preview(c echo.Context) error {
	d, cells, ok, err := h.bindDraft(c)
	if !ok {
		return err
	}
	r, err := h.Svc.Preview(c.Request().Context(), d, cells)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toResp(r))
}

// Cells handles GET /v1/reservations/:id/cells.
func (h *ReservationHandler) Cells(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	m, err := h.Svc.GetCellMatrix(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// Delete handles DELETE /v1/reservations/:id.
func (h *ReservationHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	if err := h.Svc.Delete(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type bulkDeleteReq struct {
	IDs []int64 `json:"ids" validate:"required,min=1"`
}

// BulkDelete handles POST /v1/reservations/bulk-delete.
func (h *ReservationHandler) BulkDelete(c echo.Context) error {
	var req bulkDeleteReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	n, err := h.Svc.DeleteMany(c.Request().Context(), req.IDs)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": n})
}

// SearchAdvertisers handles GET /v1/advertisers?q=&limit=.
func (h *ReservationHandler) SearchAdvertisers(c echo.Context) error {
	limit, ok := queryInt(c, "limit", 20)
	if !ok || limit < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
	}
	names, err := h.Svc.SearchAdvertisers(c.Request().Context(), c.QueryParam("q"), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": names})
}

// ListByAdvertiser handles GET /v1/advertisers/:name/reservations.
func (h *ReservationHandler) ListByAdvertiser(c echo.Context) error {
	limit, ok := queryInt(c, "limit", 50)
	if !ok || limit < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
	}
	confirmed, ok := queryBool(c, "confirmed", true)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid confirmed flag"})
	}
	list, err := h.Svc.ListByAdvertiser(c.Request().Context(), nameParam(c, "name"), confirmed, limit)
	if err != nil {
		return writeError(c, err)
	}
	items := make([]reservationResp, 0, len(list))
	for _, r := range list {
		items = append(items, toResp(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// DeleteBySpotCode handles DELETE /v1/advertisers/:name/reservations?spot_code=.
func (h *ReservationHandler) DeleteBySpotCode(c echo.Context) error {
	code := strings.TrimSpace(c.QueryParam("spot_code"))
	n, err := h.Svc.DeleteBySpotCode(c.Request().Context(), nameParam(c, "name"), code)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": n})
}

// nameParam returns an unescaped path parameter.
func nameParam(c echo.Context, param string) string {
	raw := c.Param(param)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
