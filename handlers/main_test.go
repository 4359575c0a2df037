// handlers/main_test.go
//
// Shared fixtures: an in-memory sqlite database, a fake image store and a
// router wired exactly like production, minus GCS and wkhtmltopdf.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sstpro/backend/middleware"
	"github.com/sstpro/backend/models"
)

const testSecret = "test-secret"

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(&models.User{}, &models.Company{}, &models.UserCompany{},
		&models.Report{}, &models.Observation{})
	if err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

// fakeStore is an in-memory ImageStore that records every upload and delete.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte // url -> data
	deleted []string
	failAll bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return "", fmt.Errorf("fake store: upload disabled")
	}
	url := "https://img.test/" + key
	s.objects[url] = data
	return url, nil
}

func (s *fakeStore) Delete(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, url)
	s.deleted = append(s.deleted, url)
	return nil
}

func (s *fakeStore) deletedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

func (s *fakeStore) uploadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// fakeConverter skips wkhtmltopdf and returns the HTML it was handed, so
// tests can assert on the rendered document.
type fakeConverter struct {
	lastHTML string
}

func (c *fakeConverter) Convert(ctx context.Context, html string) ([]byte, error) {
	c.lastHTML = html
	return []byte("%PDF-fake\n" + html), nil
}

type testEnv struct {
	h      *Handler
	db     *gorm.DB
	store  *fakeStore
	conv   *fakeConverter
	tokens *middleware.TokenManager
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)
	store := newFakeStore()
	conv := &fakeConverter{}
	tokens := middleware.NewTokenManager(testSecret)
	h := New(db, store, tokens, conv)

	// Mirror of routes.RegisterRoutes; duplicated here to avoid an import
	// cycle between the routes and handlers test packages.
	r := mux.NewRouter()
	r.HandleFunc("/api/auth/register", h.Register).Methods("POST")
	r.HandleFunc("/api/auth/login", h.Login).Methods("POST")
	r.HandleFunc("/api/auth/refresh", h.Refresh).Methods("POST")
	api := r.PathPrefix("/api").Subrouter()
	api.Use(tokens.Middleware)
	api.HandleFunc("/auth/me", h.Me).Methods("GET")
	api.HandleFunc("/companies", h.ListCompanies).Methods("GET")
	api.HandleFunc("/companies", h.CreateCompany).Methods("POST")
	api.HandleFunc("/companies/{id}", h.UpdateCompany).Methods("PUT")
	api.HandleFunc("/companies/{id}", h.DeleteCompany).Methods("DELETE")
	api.HandleFunc("/reports", h.ListReports).Methods("GET")
	api.HandleFunc("/reports", h.CreateReport).Methods("POST")
	api.HandleFunc("/reports/{id}", h.GetReport).Methods("GET")
	api.HandleFunc("/reports/{id}", h.UpdateReport).Methods("PUT")
	api.HandleFunc("/reports/{id}", h.DeleteReport).Methods("DELETE")
	api.HandleFunc("/reports/{id}/export", h.ExportReport).Methods("GET")
	api.HandleFunc("/pdf/{reportId}", h.ExportPDF).Methods("GET")

	return &testEnv{h: h, db: db, store: store, conv: conv, tokens: tokens, router: r}
}

func (env *testEnv) createUser(t *testing.T, email string) (models.User, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := models.User{Email: email, Name: "Test User", PasswordHash: string(hash)}
	if err := env.db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := env.tokens.GenerateToken(u)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return u, token
}

func (env *testEnv) createCompany(t *testing.T, userID uuid.UUID, cuit string) models.Company {
	t.Helper()
	c := models.Company{Name: "Acme SA", Cuit: cuit, Address: "Main St 1", Industry: "construction"}
	if err := env.db.Create(&c).Error; err != nil {
		t.Fatalf("create company: %v", err)
	}
	link := models.UserCompany{UserID: userID, CompanyID: c.ID}
	if err := env.db.Create(&link).Error; err != nil {
		t.Fatalf("link company: %v", err)
	}
	return c
}

func (env *testEnv) createReport(t *testing.T, userID, companyID uuid.UUID) models.Report {
	t.Helper()
	rep := models.Report{CompanyID: companyID, UserID: userID, Contact: "Foreman", Status: models.StatusDraft}
	if err := env.db.Create(&rep).Error; err != nil {
		t.Fatalf("create report: %v", err)
	}
	return rep
}

func (env *testEnv) createObservation(t *testing.T, reportID uuid.UUID, text, risk string, imageURL *string) models.Observation {
	t.Helper()
	o := models.Observation{ReportID: reportID, Observation: text, Risk: risk, ImageURL: imageURL}
	if err := env.db.Create(&o).Error; err != nil {
		t.Fatalf("create observation: %v", err)
	}
	return o
}

// do runs a request through the router and returns the recorder.
func (env *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) doJSON(t *testing.T, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	return env.do(t, method, path, token, body, "application/json")
}

type formFile struct {
	field    string
	filename string
	data     []byte
}

// multipartBody builds a multipart form with the given fields and files.
func multipartBody(t *testing.T, fields map[string]string, files []formFile) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatalf("create file %s: %v", f.field, err)
		}
		if _, err := part.Write(f.data); err != nil {
			t.Fatalf("write file %s: %v", f.field, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}
