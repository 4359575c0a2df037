// models/report.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusDraft     = "draft"
	StatusFinalized = "finalized"
)

const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// ValidStatus reports whether s is one of the report lifecycle states.
func ValidStatus(s string) bool {
	return s == StatusDraft || s == StatusFinalized
}

// ValidRisk reports whether s is one of the observation risk levels.
func ValidRisk(s string) bool {
	return s == RiskLow || s == RiskMedium || s == RiskHigh
}

// Report is one inspection visit. The creating user is the only writer; other
// members of the company can read it.
type Report struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID       uuid.UUID      `gorm:"type:uuid;index;not null" json:"companyId"`
	Company         *Company       `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	UserID          uuid.UUID      `gorm:"type:uuid;index;not null" json:"userId"`
	InspectionDate  datatypes.Date `json:"inspectionDate"`
	Contact         string         `gorm:"size:200" json:"contact"`
	Description     string         `gorm:"type:text" json:"description"`
	Verification    string         `gorm:"type:text" json:"verification"`
	Recommendations string         `gorm:"type:text" json:"recommendations"`
	Signature       string         `gorm:"size:200" json:"signature"`
	VisitConfirmed  bool           `json:"visitConfirmed"`
	Status          string         `gorm:"size:20;not null;default:draft" json:"status"`
	Observations    []Observation  `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE" json:"observations,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}

// Observation is one recorded finding within a report.
type Observation struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID    uuid.UUID `gorm:"type:uuid;index;not null" json:"reportId"`
	Observation string    `gorm:"type:text;not null" json:"observation"`
	Risk        string    `gorm:"size:10;not null;default:low" json:"risk"`
	ImageURL    *string   `gorm:"size:500" json:"imageUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (o *Observation) BeforeCreate(tx *gorm.DB) (err error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return
}
