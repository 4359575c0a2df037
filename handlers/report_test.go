// handlers/report_test.go
package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/sstpro/backend/models"
)

func TestCreateReportRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	u, token := env.createUser(t, "a@example.com")
	c := env.createCompany(t, u.ID, "30-1")

	body, contentType := multipartBody(t, map[string]string{
		"companyId":      c.ID.String(),
		"inspectionDate": "2026-03-15",
		"contact":        "Site foreman",
		"description":    "Quarterly walkthrough",
		"visitConfirmed": "true",
		"observations":   `[{"observation":"Missing guardrail","risk":"high"},{"observation":"Expired extinguisher","risk":"low"}]`,
	}, []formFile{
		{field: "images", filename: "guardrail.jpg", data: []byte("jpeg-bytes")},
	})

	rec := env.do(t, "POST", "/api/reports", token, body, contentType)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d (%s)", rec.Code, rec.Body.String())
	}
	var created models.Report
	decodeJSON(t, rec, &created)
	if created.Status != models.StatusDraft {
		t.Fatalf("status = %q, want draft default", created.Status)
	}
	if len(created.Observations) != 2 {
		t.Fatalf("created with %d observations, want 2", len(created.Observations))
	}

	// round trip: the read view matches what was submitted
	rec = env.do(t, "GET", "/api/reports/"+created.ID.String(), token, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: got %d (%s)", rec.Code, rec.Body.String())
	}
	var fetched models.Report
	decodeJSON(t, rec, &fetched)
	if len(fetched.Observations) != 2 {
		t.Fatalf("fetched %d observations, want 2", len(fetched.Observations))
	}

	byText := map[string]models.Observation{}
	for _, o := range fetched.Observations {
		byText[o.Observation] = o
	}
	guardrail, ok := byText["Missing guardrail"]
	if !ok {
		t.Fatalf("guardrail observation missing: %+v", fetched.Observations)
	}
	if guardrail.Risk != models.RiskHigh {
		t.Fatalf("guardrail risk = %q, want high", guardrail.Risk)
	}
	if guardrail.ImageURL == nil || !strings.HasPrefix(*guardrail.ImageURL, "https://img.test/users/") {
		t.Fatalf("guardrail image = %v, want an uploaded URL", guardrail.ImageURL)
	}
	extinguisher := byText["Expired extinguisher"]
	if extinguisher.Risk != models.RiskLow {
		t.Fatalf("extinguisher risk = %q, want low", extinguisher.Risk)
	}
	if extinguisher.ImageURL != nil {
		t.Fatalf("extinguisher image = %v, want none", *extinguisher.ImageURL)
	}
}

func TestCreateReportValidation(t *testing.T) {
	env := newTestEnv(t)
	u, token := env.createUser(t, "a@example.com")
	c := env.createCompany(t, u.ID, "30-1")

	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"missing companyId", map[string]string{"contact": "x"}},
		{"bad status", map[string]string{"companyId": c.ID.String(), "status": "archived"}},
		{"bad risk", map[string]string{"companyId": c.ID.String(), "observations": `[{"observation":"x","risk":"extreme"}]`}},
		{"bad date", map[string]string{"companyId": c.ID.String(), "inspectionDate": "15/03/2026"}},
		{"observations not JSON", map[string]string{"companyId": c.ID.String(), "observations": "not-json"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tc.fields, nil)
			rec := env.do(t, "POST", "/api/reports", token, body, contentType)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("got %d, want 400 (%s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateReportForeignCompany(t *testing.T) {
	env := newTestEnv(t)
	userA, _ := env.createUser(t, "a@example.com")
	_, tokenB := env.createUser(t, "b@example.com")
	c := env.createCompany(t, userA.ID, "30-1")

	body, contentType := multipartBody(t, map[string]string{"companyId": c.ID.String()}, nil)
	rec := env.do(t, "POST", "/api/reports", tokenB, body, contentType)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rec.Code)
	}
}

func TestListReportsFilters(t *testing.T) {
	env := newTestEnv(t)
	u, token := env.createUser(t, "a@example.com")
	c1 := env.createCompany(t, u.ID, "30-1")
	c2 := env.createCompany(t, u.ID, "30-2")

	r1 := env.createReport(t, u.ID, c1.ID)
	env.createReport(t, u.ID, c2.ID)
	env.db.Model(&models.Report{}).Where("id = ?", r1.ID).Update("status", models.StatusFinalized)

	rec := env.do(t, "GET", "/api/reports", token, nil, "")
	var all []models.Report
	decodeJSON(t, rec, &all)
	if len(all) != 2 {
		t.Fatalf("unfiltered: got %d reports, want 2", len(all))
	}

	rec = env.do(t, "GET", "/api/reports?companyId="+c1.ID.String(), token, nil, "")
	var byCompany []models.Report
	decodeJSON(t, rec, &byCompany)
	if len(byCompany) != 1 || byCompany[0].ID != r1.ID {
		t.Fatalf("companyId filter: got %+v", byCompany)
	}

	rec = env.do(t, "GET", "/api/reports?status=finalized", token, nil, "")
	var byStatus []models.Report
	decodeJSON(t, rec, &byStatus)
	if len(byStatus) != 1 || byStatus[0].ID != r1.ID {
		t.Fatalf("status filter: got %+v", byStatus)
	}

	rec = env.do(t, "GET", "/api/reports?status=archived", token, nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status filter: got %d, want 400", rec.Code)
	}
}

func TestGetReportNotAssociated(t *testing.T) {
	env := newTestEnv(t)
	userA, _ := env.createUser(t, "a@example.com")
	_, tokenB := env.createUser(t, "b@example.com")
	c := env.createCompany(t, userA.ID, "30-1")
	rep := env.createReport(t, userA.ID, c.ID)

	rec := env.do(t, "GET", "/api/reports/"+rep.ID.String(), tokenB, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rec.Code)
	}
}

// Company members can read a report, but only its creator can mutate it.
func TestReportMutationRequiresCreator(t *testing.T) {
	env := newTestEnv(t)
	userA, _ := env.createUser(t, "a@example.com")
	userB, tokenB := env.createUser(t, "b@example.com")
	c := env.createCompany(t, userA.ID, "30-1")
	if err := env.db.Create(&models.UserCompany{UserID: userB.ID, CompanyID: c.ID}).Error; err != nil {
		t.Fatalf("link user B: %v", err)
	}
	rep := env.createReport(t, userA.ID, c.ID)

	rec := env.do(t, "GET", "/api/reports/"+rep.ID.String(), tokenB, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("member read: got %d, want 200", rec.Code)
	}

	body, contentType := multipartBody(t, map[string]string{"contact": "Hijacked"}, nil)
	rec = env.do(t, "PUT", "/api/reports/"+rep.ID.String(), tokenB, body, contentType)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("member update: got %d, want 404", rec.Code)
	}

	rec = env.do(t, "DELETE", "/api/reports/"+rep.ID.String(), tokenB, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("member delete: got %d, want 404", rec.Code)
	}
}

func TestDeleteReportCleansUpImages(t *testing.T) {
	env := newTestEnv(t)
	u, token := env.createUser(t, "a@example.com")
	c := env.createCompany(t, u.ID, "30-1")
	rep := env.createReport(t, u.ID, c.ID)

	url := "https://img.test/users/x/keep.jpg"
	env.createObservation(t, rep.ID, "with image", models.RiskLow, &url)
	env.createObservation(t, rep.ID, "without image", models.RiskHigh, nil)

	rec := env.do(t, "DELETE", "/api/reports/"+rep.ID.String(), token, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: got %d (%s)", rec.Code, rec.Body.String())
	}

	var reports, obs int64
	env.db.Model(&models.Report{}).Where("id = ?", rep.ID).Count(&reports)
	env.db.Model(&models.Observation{}).Where("report_id = ?", rep.ID).Count(&obs)
	if reports != 0 || obs != 0 {
		t.Fatalf("rows left after delete: reports=%d observations=%d", reports, obs)
	}

	deleted := env.store.deletedURLs()
	if len(deleted) != 1 || deleted[0] != url {
		t.Fatalf("deleted blobs = %v, want exactly [%s]", deleted, url)
	}
}
