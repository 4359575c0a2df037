// handlers/company.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/sstpro/backend/middleware"
	"github.com/sstpro/backend/models"
)

type companyReq struct {
	Name     string `json:"name"`
	Cuit     string `json:"cuit"`
	Address  string `json:"address"`
	Industry string `json:"industry"`
}

// isAssociated reports whether the user has a membership row for the company.
func (h *Handler) isAssociated(userID, companyID uuid.UUID) (bool, error) {
	var count int64
	err := h.DB.Model(&models.UserCompany{}).
		Where("user_id = ? AND company_id = ?", userID, companyID).
		Count(&count).Error
	return count > 0, err
}

// ListCompanies returns the companies the caller is associated with.
func (h *Handler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	var companies []models.Company
	err := h.DB.
		Joins("JOIN user_companies ON user_companies.company_id = companies.id").
		Where("user_companies.user_id = ?", userID).
		Order("companies.name asc").
		Find(&companies).Error
	if err != nil {
		writeError(w, UpstreamError{Op: "list companies", Err: err})
		return
	}
	writeJSON(w, http.StatusOK, companies)
}

// CreateCompany creates a company, or links the caller to the existing one
// when the CUIT is already registered. The first creator's name, address and
// industry stand; later callers only gain an association.
func (h *Handler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	var req companyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ValidationError{Msg: "invalid JSON"})
		return
	}
	req.Cuit = strings.TrimSpace(req.Cuit)
	if req.Name == "" || req.Cuit == "" {
		writeError(w, ValidationError{Msg: "name and cuit are required"})
		return
	}

	var company models.Company
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("cuit = ?", req.Cuit).First(&company).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			company = models.Company{
				Name:     req.Name,
				Cuit:     req.Cuit,
				Address:  req.Address,
				Industry: req.Industry,
			}
			if err := tx.Create(&company).Error; err != nil {
				return UpstreamError{Op: "create company", Err: err}
			}
		} else if err != nil {
			return UpstreamError{Op: "lookup company", Err: err}
		}

		link := models.UserCompany{UserID: userID, CompanyID: company.ID}
		if err := tx.Where(&link).FirstOrCreate(&link).Error; err != nil {
			return UpstreamError{Op: "link company", Err: err}
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, company)
}

// UpdateCompany updates name/address/industry. CUIT is the company's identity
// and is not editable.
func (h *Handler) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	companyID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, ValidationError{Msg: "invalid company id"})
		return
	}

	ok, err := h.isAssociated(userID, companyID)
	if err != nil {
		writeError(w, UpstreamError{Op: "check association", Err: err})
		return
	}
	if !ok {
		writeError(w, NotFoundError{Resource: "company"})
		return
	}

	var req companyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ValidationError{Msg: "invalid JSON"})
		return
	}

	var company models.Company
	if err := h.DB.First(&company, "id = ?", companyID).Error; err != nil {
		writeError(w, dbError("company", err))
		return
	}

	if req.Name != "" {
		company.Name = req.Name
	}
	if req.Address != "" {
		company.Address = req.Address
	}
	if req.Industry != "" {
		company.Industry = req.Industry
	}
	if err := h.DB.Save(&company).Error; err != nil {
		writeError(w, UpstreamError{Op: "update company", Err: err})
		return
	}

	writeJSON(w, http.StatusOK, company)
}

// DeleteCompany removes the caller's association. The company row stays,
// other members keep their access.
func (h *Handler) DeleteCompany(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	companyID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, ValidationError{Msg: "invalid company id"})
		return
	}

	res := h.DB.Where("user_id = ? AND company_id = ?", userID, companyID).
		Delete(&models.UserCompany{})
	if res.Error != nil {
		writeError(w, UpstreamError{Op: "delete association", Err: res.Error})
		return
	}
	if res.RowsAffected == 0 {
		writeError(w, NotFoundError{Resource: "company"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "company unlinked"})
}
