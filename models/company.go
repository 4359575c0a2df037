// models/company.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Company rows are shared between users. There is no owner column: access is
// granted through UserCompany associations, and the first creator's fields win
// when a later registration supplies the same CUIT.
type Company struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	Cuit      string    `gorm:"size:20;uniqueIndex;not null" json:"cuit"`
	Address   string    `gorm:"size:255" json:"address"`
	Industry  string    `gorm:"size:100" json:"industry"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Company) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}

// UserCompany links a user to a company. Membership grants read/update on the
// company and read on its reports.
type UserCompany struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"userId"`
	CompanyID uuid.UUID `gorm:"type:uuid;primaryKey" json:"companyId"`
	CreatedAt time.Time `json:"createdAt"`
}
