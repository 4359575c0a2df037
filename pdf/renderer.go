// Package pdf renders a finalized inspection report as HTML and hands it to
// an external HTML-to-PDF converter.
package pdf

import (
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	wkhtmltopdf "github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"gorm.io/datatypes"

	"github.com/sstpro/backend/models"
)

// Converter turns rendered HTML into PDF bytes. It is an interface so handler
// tests can cover the HTML stage without wkhtmltopdf installed.
type Converter interface {
	Convert(ctx context.Context, html string) ([]byte, error)
}

// Document is everything the template needs, fetched by the caller.
type Document struct {
	Report       *models.Report
	Company      *models.Company
	Observations []models.Observation
}

var riskLabels = map[string]string{
	models.RiskLow:    "Low",
	models.RiskMedium: "Medium",
	models.RiskHigh:   "High",
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"orNA": func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "N/A"
		}
		return s
	},
	"signature": func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "Not signed"
		}
		return s
	},
	"risk": func(r string) string {
		if label, ok := riskLabels[r]; ok {
			return label
		}
		return r
	},
	"yesno": func(b bool) string {
		if b {
			return "Yes"
		}
		return "No"
	},
	"date": func(d datatypes.Date) string {
		return time.Time(d).Format("2006-01-02")
	},
	"inc": func(i int) int { return i + 1 },
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; color: #222; }
h1 { font-size: 20px; border-bottom: 2px solid #222; padding-bottom: 6px; }
h2 { font-size: 15px; margin-top: 24px; }
table.meta td { padding: 3px 12px 3px 0; vertical-align: top; }
table.meta td:first-child { font-weight: bold; width: 160px; }
.observation { border: 1px solid #ccc; margin-top: 10px; padding: 8px; page-break-inside: avoid; }
.risk-low { color: #2e7d32; }
.risk-medium { color: #ef6c00; }
.risk-high { color: #c62828; }
.observation img { max-width: 360px; max-height: 260px; margin-top: 6px; }
.signature { margin-top: 40px; }
</style>
</head>
<body>
<h1>Inspection Report</h1>
<table class="meta">
<tr><td>Company</td><td>{{.Company.Name}}</td></tr>
<tr><td>CUIT</td><td>{{.Company.Cuit}}</td></tr>
<tr><td>Address</td><td>{{orNA .Company.Address}}</td></tr>
<tr><td>Industry</td><td>{{orNA .Company.Industry}}</td></tr>
<tr><td>Inspection date</td><td>{{date .Report.InspectionDate}}</td></tr>
<tr><td>Status</td><td>{{.Report.Status}}</td></tr>
<tr><td>Contact</td><td>{{orNA .Report.Contact}}</td></tr>
<tr><td>Visit confirmed</td><td>{{yesno .Report.VisitConfirmed}}</td></tr>
</table>

<h2>Description</h2>
<p>{{orNA .Report.Description}}</p>

<h2>Observations</h2>
{{if .Observations}}
{{range $i, $o := .Observations}}
<div class="observation">
<strong>{{inc $i}}. </strong>
<span class="risk-{{$o.Risk}}">[{{risk $o.Risk}}]</span>
{{orNA $o.Observation}}
{{if $o.ImageURL}}<br><img src="{{deref $o.ImageURL}}">{{end}}
</div>
{{end}}
{{else}}
<p>N/A</p>
{{end}}

<h2>Verification</h2>
<p>{{orNA .Report.Verification}}</p>

<h2>Recommendations</h2>
<p>{{orNA .Report.Recommendations}}</p>

<div class="signature">
<p>Signature: {{signature .Report.Signature}}</p>
</div>
</body>
</html>`))

// RenderHTML produces the report document deterministically from its inputs.
func RenderHTML(doc Document) (string, error) {
	var b strings.Builder
	if err := reportTemplate.Execute(&b, doc); err != nil {
		return "", fmt.Errorf("render report html: %w", err)
	}
	return b.String(), nil
}

// WKHTMLConverter shells out to wkhtmltopdf through go-wkhtmltopdf. The
// binary must be on PATH.
type WKHTMLConverter struct{}

func (WKHTMLConverter) Convert(ctx context.Context, html string) ([]byte, error) {
	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("wkhtmltopdf: %w", err)
	}
	pdfg.PageSize.Set(wkhtmltopdf.PageSizeA4)
	pdfg.MarginTop.Set(12)
	pdfg.MarginBottom.Set(12)

	page := wkhtmltopdf.NewPageReader(strings.NewReader(html))
	pdfg.AddPage(page)

	if err := pdfg.CreateContext(ctx); err != nil {
		return nil, fmt.Errorf("wkhtmltopdf: %w", err)
	}
	return pdfg.Bytes(), nil
}
