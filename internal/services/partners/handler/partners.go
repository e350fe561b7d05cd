package handler

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"varejo-system/internal/database/models"
)

// PartnersHandler manages the partner commission ledger. Profiles are created
// by explicitly linking an existing user; sales never create one. Accrual is
// owned by the sale engine, so this surface only reads balances and applies
// manual adjustments (status change, reward redemption).
type PartnersHandler struct {
	db                  *gorm.DB
	defaultCommission   string
	rewardUnitThreshold int32
}

func NewPartnersHandler(db *gorm.DB, defaultCommission string, rewardUnitThreshold int) *PartnersHandler {
	return &PartnersHandler{
		db:                  db,
		defaultCommission:   defaultCommission,
		rewardUnitThreshold: int32(rewardUnitThreshold),
	}
}

type CreatePartnerRequest struct {
	UserID     int64            `json:"user_id" binding:"required"`
	Commission *decimal.Decimal `json:"commission,omitempty"`
}

type UpdatePartnerRequest struct {
	Status            string           `json:"status,omitempty"`
	CommissionBalance *decimal.Decimal `json:"commission_balance,omitempty"`
	UnitProgress      *int32           `json:"unit_progress,omitempty"`
}

// PartnerResponse flattens profile plus user identity for listing.
type PartnerResponse struct {
	ID                int64  `json:"id"`
	UserID            int64  `json:"user_id"`
	Name              string `json:"name"`
	Username          string `json:"username"`
	Commission        string `json:"commission"`
	CommissionBalance string `json:"commission_balance"`
	TotalCommission   string `json:"total_commission"`
	TotalSales        string `json:"total_sales"`
	UnitsSold         int32  `json:"units_sold"`
	UnitProgress      int32  `json:"unit_progress"`
	RewardEligible    bool   `json:"reward_eligible"`
	Status            string `json:"status"`
}

func (s *PartnersHandler) toResponse(p models.PartnerProfile) PartnerResponse {
	resp := PartnerResponse{
		ID:                p.ID,
		UserID:            p.UserID,
		Commission:        p.Commission,
		CommissionBalance: p.CommissionBalance,
		TotalCommission:   p.TotalCommission,
		TotalSales:        p.TotalSales,
		UnitsSold:         p.UnitsSold,
		UnitProgress:      p.UnitProgress,
		RewardEligible:    p.UnitProgress >= s.rewardUnitThreshold,
		Status:            p.Status,
	}
	if p.User != nil {
		resp.Name = p.User.Name
		resp.Username = p.User.Username
	}
	return resp
}

func (s *PartnersHandler) ListPartners(c *gin.Context) {
	var partners []models.PartnerProfile
	err := s.db.Preload("User").
		Joins("JOIN users ON users.id = partner_profiles.user_id").
		Order("users.name ASC").
		Find(&partners).Error
	if err != nil {
		log.Printf("Error fetching partners: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching partners"})
		return
	}

	resp := make([]PartnerResponse, 0, len(partners))
	for _, p := range partners {
		resp = append(resp, s.toResponse(p))
	}

	c.JSON(http.StatusOK, resp)
}

func (s *PartnersHandler) CreatePartner(c *gin.Context) {
	var req CreatePartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID is required"})
		return
	}

	var user models.User
	if err := s.db.First(&user, req.UserID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusBadRequest, gin.H{"error": "User not found"})
			return
		}
		log.Printf("Error fetching user %d: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating partner"})
		return
	}

	var existing models.PartnerProfile
	err := s.db.Where("user_id = ?", req.UserID).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User is already a partner"})
		return
	}
	if err != gorm.ErrRecordNotFound {
		log.Printf("Error checking partner profile for user %d: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating partner"})
		return
	}

	commission := s.defaultCommission
	if req.Commission != nil {
		commission = req.Commission.StringFixed(2)
	}

	profile := models.PartnerProfile{
		UserID:            req.UserID,
		Commission:        commission,
		CommissionBalance: "0.00",
		TotalCommission:   "0.00",
		TotalSales:        "0.00",
		Status:            models.StatusActive,
	}

	if err := s.db.Create(&profile).Error; err != nil {
		log.Printf("Error creating partner profile: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating partner"})
		return
	}

	profile.User = &user
	c.JSON(http.StatusCreated, s.toResponse(profile))
}

func (s *PartnersHandler) UpdatePartner(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid partner id"})
		return
	}

	var req UpdatePartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	var profile models.PartnerProfile
	if err := s.db.Preload("User").First(&profile, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Partner not found"})
			return
		}
		log.Printf("Error fetching partner %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error updating partner"})
		return
	}

	if req.Status != "" {
		profile.Status = req.Status
	}
	if req.CommissionBalance != nil {
		profile.CommissionBalance = req.CommissionBalance.StringFixed(2)
	}
	if req.UnitProgress != nil {
		profile.UnitProgress = *req.UnitProgress
	}

	if err := s.db.Save(&profile).Error; err != nil {
		log.Printf("Error updating partner %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error updating partner"})
		return
	}

	c.JSON(http.StatusOK, s.toResponse(profile))
}

// DeletePartner removes the commission profile only; the user stays.
func (s *PartnersHandler) DeletePartner(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid partner id"})
		return
	}

	res := s.db.Delete(&models.PartnerProfile{}, id)
	if res.Error != nil {
		log.Printf("Error deleting partner %d: %v", id, res.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error deleting partner"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Partner not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListAvailableUsers returns non-admin users that do not have a partner
// profile yet.
func (s *PartnersHandler) ListAvailableUsers(c *gin.Context) {
	users := make([]models.User, 0)
	err := s.db.
		Where("role <> ?", models.RoleAdmin).
		Where("id NOT IN (?)", s.db.Model(&models.PartnerProfile{}).Select("user_id")).
		Order("name ASC").
		Find(&users).Error
	if err != nil {
		log.Printf("Error fetching available users: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching users"})
		return
	}

	c.JSON(http.StatusOK, users)
}
