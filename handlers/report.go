// handlers/report.go
package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sstpro/backend/middleware"
	"github.com/sstpro/backend/models"
	"github.com/sstpro/backend/storage"
)

const (
	maxUploadSize = 32 << 20 // whole multipart form
	uploadWorkers = 4        // concurrent image uploads per request
)

// reportFields are the scalar form fields shared by create and update.
type reportFields struct {
	CompanyID       uuid.UUID
	InspectionDate  datatypes.Date
	Contact         string
	Description     string
	Verification    string
	Recommendations string
	Signature       string
	VisitConfirmed  bool
	Status          string
}

func parseReportFields(r *http.Request) (reportFields, error) {
	var f reportFields

	if raw := r.FormValue("companyId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, ValidationError{Msg: "invalid companyId"}
		}
		f.CompanyID = id
	}
	if raw := r.FormValue("inspectionDate"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return f, ValidationError{Msg: "inspectionDate must be YYYY-MM-DD"}
		}
		f.InspectionDate = datatypes.Date(d)
	}
	f.Contact = r.FormValue("contact")
	f.Description = r.FormValue("description")
	f.Verification = r.FormValue("verification")
	f.Recommendations = r.FormValue("recommendations")
	f.Signature = r.FormValue("signature")
	if raw := r.FormValue("visitConfirmed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, ValidationError{Msg: "visitConfirmed must be a boolean"}
		}
		f.VisitConfirmed = v
	}
	f.Status = r.FormValue("status")
	if f.Status != "" && !models.ValidStatus(f.Status) {
		return f, validationErrorf("status must be %q or %q", models.StatusDraft, models.StatusFinalized)
	}
	return f, nil
}

// fetchReadableReport loads a report the caller may read: any member of the
// report's company. Absent and not-accessible are both reported as not found.
func (h *Handler) fetchReadableReport(userID, reportID uuid.UUID) (*models.Report, error) {
	var report models.Report
	if err := h.DB.Preload("Company").First(&report, "id = ?", reportID).Error; err != nil {
		return nil, dbError("report", err)
	}
	ok, err := h.isAssociated(userID, report.CompanyID)
	if err != nil {
		return nil, UpstreamError{Op: "check association", Err: err}
	}
	if !ok {
		return nil, NotFoundError{Resource: "report"}
	}
	return &report, nil
}

// fetchOwnedReport loads a report the caller may mutate: only its creator.
func (h *Handler) fetchOwnedReport(userID, reportID uuid.UUID) (*models.Report, error) {
	var report models.Report
	err := h.DB.First(&report, "id = ? AND user_id = ?", reportID, userID).Error
	if err != nil {
		return nil, dbError("report", err)
	}
	return &report, nil
}

func (h *Handler) reportObservations(reportID uuid.UUID) ([]models.Observation, error) {
	var obs []models.Observation
	err := h.DB.Where("report_id = ?", reportID).Order("created_at asc, id asc").Find(&obs).Error
	if err != nil {
		return nil, UpstreamError{Op: "list observations", Err: err}
	}
	return obs, nil
}

// ListReports returns reports of the caller's companies, optionally filtered
// by companyId and status.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	q := h.DB.Model(&models.Report{}).
		Joins("JOIN user_companies ON user_companies.company_id = reports.company_id").
		Where("user_companies.user_id = ?", userID)

	if raw := r.URL.Query().Get("companyId"); raw != "" {
		companyID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, ValidationError{Msg: "invalid companyId"})
			return
		}
		q = q.Where("reports.company_id = ?", companyID)
	}
	if status := r.URL.Query().Get("status"); status != "" {
		if !models.ValidStatus(status) {
			writeError(w, validationErrorf("status must be %q or %q", models.StatusDraft, models.StatusFinalized))
			return
		}
		q = q.Where("reports.status = ?", status)
	}

	var reports []models.Report
	if err := q.Preload("Company").Order("reports.created_at desc").Find(&reports).Error; err != nil {
		writeError(w, UpstreamError{Op: "list reports", Err: err})
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// GetReport returns one report with its observations.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
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
	report.Observations = obs

	writeJSON(w, http.StatusOK, report)
}

// CreateReport creates a report with its initial observations. Observations
// come as a JSON array in the "observations" field; "images" files are matched
// to them positionally.
func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, ValidationError{Msg: "invalid multipart form"})
		return
	}
	// Temp files on disk must go on every exit path.
	defer r.MultipartForm.RemoveAll()

	fields, err := parseReportFields(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if fields.CompanyID == uuid.Nil {
		writeError(w, ValidationError{Msg: "companyId is required"})
		return
	}

	ok, err := h.isAssociated(userID, fields.CompanyID)
	if err != nil {
		writeError(w, UpstreamError{Op: "check association", Err: err})
		return
	}
	if !ok {
		writeError(w, NotFoundError{Resource: "company"})
		return
	}

	entries, err := parseEditEntries(r.FormValue("observations"))
	if err != nil {
		writeError(w, err)
		return
	}
	images := r.MultipartForm.File["images"]
	if len(images) > len(entries) {
		writeError(w, ValidationError{Msg: "more images than observations"})
		return
	}

	// Upload positionally matched images before any row is written.
	urls := make([]*string, len(entries))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(uploadWorkers)
	var uploaded []string
	for i := range images {
		i := i
		g.Go(func() error {
			url, err := h.uploadFile(ctx, userID, images[i])
			if err != nil {
				return err
			}
			urls[i] = &url
			return nil
		})
	}
	waitErr := g.Wait()
	for _, u := range urls {
		if u != nil {
			uploaded = append(uploaded, *u)
		}
	}
	if waitErr != nil {
		h.cleanupBlobs(r.Context(), uploaded)
		writeError(w, UpstreamError{Op: "upload image", Err: waitErr})
		return
	}

	report := models.Report{
		CompanyID:       fields.CompanyID,
		UserID:          userID,
		InspectionDate:  fields.InspectionDate,
		Contact:         fields.Contact,
		Description:     fields.Description,
		Verification:    fields.Verification,
		Recommendations: fields.Recommendations,
		Signature:       fields.Signature,
		VisitConfirmed:  fields.VisitConfirmed,
		Status:          fields.Status,
	}
	if report.Status == "" {
		report.Status = models.StatusDraft
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&report).Error; err != nil {
			return err
		}
		for i, e := range entries {
			obs := models.Observation{
				ReportID:    report.ID,
				Observation: e.text(),
				Risk:        e.riskOrDefault(),
				ImageURL:    urls[i],
			}
			if urls[i] == nil && e.ImageURL != nil && *e.ImageURL != "" {
				obs.ImageURL = e.ImageURL
			}
			if err := tx.Create(&obs).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		h.cleanupBlobs(r.Context(), uploaded)
		writeError(w, UpstreamError{Op: "create report", Err: err})
		return
	}

	obs, err := h.reportObservations(report.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	report.Observations = obs

	writeJSON(w, http.StatusCreated, report)
}

// UpdateReport reconciles the submitted observation set against the stored
// one. Only the report's creator may call it.
func (h *Handler) UpdateReport(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	reportID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, ValidationError{Msg: "invalid report id"})
		return
	}

	report, err := h.fetchOwnedReport(userID, reportID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, ValidationError{Msg: "invalid multipart form"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	fields, err := parseReportFields(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if fields.CompanyID != uuid.Nil && fields.CompanyID != report.CompanyID {
		writeError(w, ValidationError{Msg: "a report cannot move between companies"})
		return
	}

	entries, err := parseEditEntries(r.FormValue("observations"))
	if err != nil {
		writeError(w, err)
		return
	}
	deleteIDs, err := parseDeletionIDs(r.FormValue("deletedObservations"))
	if err != nil {
		writeError(w, err)
		return
	}

	// Every file arrives keyed image_<id> or image_new_<tempId>; flatten the
	// form into that correlation map once, here at the boundary.
	files := make(map[string]*multipart.FileHeader)
	for field, fhs := range r.MultipartForm.File {
		if len(fhs) > 0 {
			files[field] = fhs[0]
		}
	}

	applyReportFields(report, r, fields)

	obs, err := h.reconcileObservations(r.Context(), userID, report, entries, files, deleteIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	report.Observations = obs

	writeJSON(w, http.StatusOK, report)
}

// applyReportFields copies submitted scalar fields onto the report, leaving
// absent fields untouched.
func applyReportFields(report *models.Report, r *http.Request, f reportFields) {
	if r.FormValue("inspectionDate") != "" {
		report.InspectionDate = f.InspectionDate
	}
	if r.FormValue("contact") != "" {
		report.Contact = f.Contact
	}
	if r.FormValue("description") != "" {
		report.Description = f.Description
	}
	if r.FormValue("verification") != "" {
		report.Verification = f.Verification
	}
	if r.FormValue("recommendations") != "" {
		report.Recommendations = f.Recommendations
	}
	if r.FormValue("signature") != "" {
		report.Signature = f.Signature
	}
	if r.FormValue("visitConfirmed") != "" {
		report.VisitConfirmed = f.VisitConfirmed
	}
	if f.Status != "" {
		report.Status = f.Status
	}
}

// DeleteReport removes a report, its observations and, best-effort, their
// stored images.
func (h *Handler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	reportID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, ValidationError{Msg: "invalid report id"})
		return
	}

	report, err := h.fetchOwnedReport(userID, reportID)
	if err != nil {
		writeError(w, err)
		return
	}

	obs, err := h.reportObservations(report.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("report_id = ?", report.ID).Delete(&models.Observation{}).Error; err != nil {
			return err
		}
		return tx.Delete(report).Error
	})
	if err != nil {
		writeError(w, UpstreamError{Op: "delete report", Err: err})
		return
	}

	// Blob cleanup after the rows are gone. A failed delete is a leaked
	// object, not a failed request.
	var urls []string
	for _, o := range obs {
		if o.ImageURL != nil {
			urls = append(urls, *o.ImageURL)
		}
	}
	h.cleanupBlobs(r.Context(), urls)

	writeJSON(w, http.StatusOK, map[string]string{"message": "report deleted"})
}

// uploadFile reads one multipart file and stores it under the user's
// namespace.
func (h *Handler) uploadFile(ctx context.Context, userID uuid.UUID, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return h.Images.Upload(ctx, storage.ObjectKey(userID, fh.Filename), contentType, data)
}

// cleanupBlobs deletes stored images best-effort, logging failures.
func (h *Handler) cleanupBlobs(ctx context.Context, urls []string) {
	for _, url := range urls {
		if err := h.Images.Delete(ctx, url); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("could not delete image %s: %v", url, err)
		}
	}
}
