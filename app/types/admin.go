package types

import (
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type AdminListSubmissionsRequest struct {
	View          string
	Status        string
	PaymentStatus string
	Page          int32
}

func (r *AdminListSubmissionsRequest) GetView() string          { return r.View }
func (r *AdminListSubmissionsRequest) GetStatus() string        { return r.Status }
func (r *AdminListSubmissionsRequest) GetPaymentStatus() string { return r.PaymentStatus }
func (r *AdminListSubmissionsRequest) GetPage() int32           { return r.Page }

func NewAdminListSubmissionsRequestFromContext(ctx echo.Context) (*AdminListSubmissionsRequest, error) {
	req := &AdminListSubmissionsRequest{
		View:          strings.ToLower(strings.TrimSpace(ctx.QueryParam("view"))),
		Status:        strings.TrimSpace(ctx.QueryParam("status")),
		PaymentStatus: strings.ToLower(strings.TrimSpace(ctx.QueryParam("paymentStatus"))),
		Page:          1,
	}
	if req.View == "" {
		req.View = "active"
	}

	if raw := strings.TrimSpace(ctx.QueryParam("page")); raw != "" {
		page, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, errors.New("invalid page")
		}
		req.Page = int32(page)
	}
	return req, nil
}

func (r *AdminListSubmissionsRequest) Validate() error {
	switch r.View {
	case "active", "deferred", "all":
	default:
		return errors.New("view must be active, deferred, or all")
	}
	if r.Page < 1 {
		return errors.New("page must be >= 1")
	}
	return nil
}

type PaginationResponse struct {
	Page       int32 `json:"page"`
	PageSize   int32 `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int32 `json:"totalPages"`
}

type AdminListSubmissionsResponse struct {
	Submissions []*SubmissionResponse `json:"submissions"`
	Pagination  PaginationResponse    `json:"pagination"`
}

type AnalyticsResponse struct {
	TotalSubmissions     int64  `json:"totalSubmissions"`
	CompletedSubmissions int64  `json:"completedSubmissions"`
	InGrading            int64  `json:"inGrading"`
	PaidSubmissions      int64  `json:"paidSubmissions"`
	TotalRevenue         string `json:"totalRevenue"`
	PaidRevenue          string `json:"paidRevenue"`
	UnpaidRevenue        string `json:"unpaidRevenue"`
}
