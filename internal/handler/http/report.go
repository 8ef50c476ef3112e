package http

import (
	"net/http"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/report"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/handler/http/middleware"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/handler/http/response"
)

type ReportHandler interface {
	// Today's records for the caller, or everyone for admins
	Today(w http.ResponseWriter, r *http.Request)

	SearchByName(w http.ResponseWriter, r *http.Request)
	SearchByDate(w http.ResponseWriter, r *http.Request)

	// Name and date-range report
	Daily(w http.ResponseWriter, r *http.Request)
}

type reportHandlerImpl struct {
	reportService report.ReportService
}

func NewReportHandler(reportService report.ReportService) ReportHandler {
	return &reportHandlerImpl{
		reportService: reportService,
	}
}

// Today handles GET /attendance/today
func (h *reportHandlerImpl) Today(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	req := report.DailyReportRequest{Viewer: identity}
	if name := r.URL.Query().Get("name"); name != "" {
		req.Name = &name
	}

	result, err := h.reportService.DailyReport(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// SearchByName handles GET /attendance/by-name
func (h *reportHandlerImpl) SearchByName(w http.ResponseWriter, r *http.Request) {
	result, err := h.reportService.SearchByName(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// SearchByDate handles GET /attendance/by-date
func (h *reportHandlerImpl) SearchByDate(w http.ResponseWriter, r *http.Request) {
	result, err := h.reportService.SearchByDate(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Daily handles GET /reports/daily
func (h *reportHandlerImpl) Daily(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := report.RangeReportRequest{
		Name:      optionalQuery(query.Get("name")),
		StartDate: optionalQuery(query.Get("start_date")),
		EndDate:   optionalQuery(query.Get("end_date")),
	}

	result, err := h.reportService.RangeReport(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func optionalQuery(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
