// handlers/export.go
package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/xuri/excelize/v2"

	"github.com/sstpro/backend/middleware"
	"github.com/sstpro/backend/models"
)

// ExportReport downloads a report with its observations as an xlsx workbook.
func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	reportID, err := uuid.Parse(mux.Vars(r)["id"])
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

	f, err := buildReportWorkbook(report, obs)
	if err != nil {
		writeError(w, UpstreamError{Op: "build workbook", Err: err})
		return
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		writeError(w, UpstreamError{Op: "write workbook", Err: err})
		return
	}

	filename := fmt.Sprintf("report_%s_%s.xlsx", report.ID, time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func buildReportWorkbook(report *models.Report, obs []models.Observation) (*excelize.File, error) {
	f := excelize.NewFile()
	const sheet = "Report"

	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	companyName := ""
	cuit := ""
	if report.Company != nil {
		companyName = report.Company.Name
		cuit = report.Company.Cuit
	}

	header := [][2]interface{}{
		{"Company", companyName},
		{"CUIT", cuit},
		{"Inspection date", time.Time(report.InspectionDate).Format("2006-01-02")},
		{"Status", report.Status},
		{"Contact", report.Contact},
		{"Visit confirmed", report.VisitConfirmed},
		{"Description", report.Description},
		{"Verification", report.Verification},
		{"Recommendations", report.Recommendations},
		{"Signature", report.Signature},
	}
	for i, kv := range header {
		row := i + 1
		labelCell := fmt.Sprintf("A%d", row)
		f.SetCellValue(sheet, labelCell, kv[0])
		f.SetCellStyle(sheet, labelCell, labelCell, bold)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), kv[1])
	}

	tableStart := len(header) + 2
	for col, title := range []string{"#", "Observation", "Risk", "Image URL"} {
		cell, err := excelize.CoordinatesToCellName(col+1, tableStart)
		if err != nil {
			return nil, err
		}
		f.SetCellValue(sheet, cell, title)
		f.SetCellStyle(sheet, cell, cell, bold)
	}
	for i, o := range obs {
		row := tableStart + 1 + i
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), i+1)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), o.Observation)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), o.Risk)
		if o.ImageURL != nil {
			f.SetCellValue(sheet, fmt.Sprintf("D%d", row), *o.ImageURL)
		}
	}

	f.SetColWidth(sheet, "A", "A", 18)
	f.SetColWidth(sheet, "B", "B", 60)
	f.SetColWidth(sheet, "C", "C", 12)
	f.SetColWidth(sheet, "D", "D", 50)

	return f, nil
}
