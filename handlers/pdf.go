// handlers/pdf.go
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/sstpro/backend/middleware"
	"github.com/sstpro/backend/pdf"
)

// ExportPDF renders a report with its observations as a PDF document.
func (h *Handler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	reportID, err := uuid.Parse(mux.Vars(r)["reportId"])
	if err != nil {
		writeError(w, ValidationError{Msg: "invalid report id"})
		return
	}

	report, err := h.fetchReadableReport(userID, reportID)
	if err != nil {
		writeError(w, err)
		return
	}
	obs, err := h.reportObservations(report.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	html, err := pdf.RenderHTML(pdf.Document{
		Report:       report,
		Company:      report.Company,
		Observations: obs,
	})
	if err != nil {
		writeError(w, UpstreamError{Op: "render report", Err: err})
		return
	}

	data, err := h.PDF.Convert(r.Context(), html)
	if err != nil {
		writeError(w, UpstreamError{Op: "convert pdf", Err: err})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=report_%s.pdf", report.ID))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
