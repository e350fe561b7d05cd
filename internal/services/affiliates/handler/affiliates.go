package handler

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"varejo-system/internal/database/models"
	"varejo-system/internal/middleware"
)

// AffiliatesHandler manages external reseller storefronts. Unlike partners,
// an affiliate is its own entity with a denormalized list of named
// sub-sellers, optionally linked to a login user.
type AffiliatesHandler struct {
	db *gorm.DB
}

func NewAffiliatesHandler(db *gorm.DB) *AffiliatesHandler {
	return &AffiliatesHandler{db: db}
}

type CreateAffiliateRequest struct {
	Name       string          `json:"name" binding:"required"`
	Store      string          `json:"store" binding:"required"`
	Commission decimal.Decimal `json:"commission"`
	Sellers    []string        `json:"sellers"`
}

type UpdateAffiliateRequest struct {
	Name       string          `json:"name" binding:"required"`
	Store      string          `json:"store" binding:"required"`
	Commission decimal.Decimal `json:"commission"`
	Sellers    []string        `json:"sellers"`
	Status     string          `json:"status"`
}

func (s *AffiliatesHandler) ListAffiliates(c *gin.Context) {
	affiliates := make([]models.AffiliateSeller, 0)
	if err := s.db.Order("name ASC").Find(&affiliates).Error; err != nil {
		log.Printf("Error fetching affiliates: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching affiliates"})
		return
	}

	c.JSON(http.StatusOK, affiliates)
}

func (s *AffiliatesHandler) CreateAffiliate(c *gin.Context) {
	claims := middleware.SessionClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req CreateAffiliateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name and Store are required"})
		return
	}

	sellers := models.StringArray(req.Sellers)
	if sellers == nil {
		sellers = models.StringArray{}
	}

	affiliate := models.AffiliateSeller{
		Name:       req.Name,
		StoreName:  req.Store,
		Commission: req.Commission.StringFixed(2),
		Sellers:    sellers,
		Status:     models.StatusActive,
		UserID:     &claims.UserId,
	}

	if err := s.db.Create(&affiliate).Error; err != nil {
		log.Printf("Error creating affiliate: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating affiliate"})
		return
	}

	c.JSON(http.StatusCreated, affiliate)
}

func (s *AffiliatesHandler) UpdateAffiliate(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid affiliate id"})
		return
	}

	var req UpdateAffiliateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name and Store are required"})
		return
	}

	var affiliate models.AffiliateSeller
	if err := s.db.First(&affiliate, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Affiliate not found"})
			return
		}
		log.Printf("Error fetching affiliate %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error updating affiliate"})
		return
	}

	affiliate.Name = req.Name
	affiliate.StoreName = req.Store
	affiliate.Commission = req.Commission.StringFixed(2)
	if req.Sellers != nil {
		affiliate.Sellers = models.StringArray(req.Sellers)
	}
	if req.Status != "" {
		affiliate.Status = req.Status
	}

	if err := s.db.Save(&affiliate).Error; err != nil {
		log.Printf("Error updating affiliate %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error updating affiliate"})
		return
	}

	c.JSON(http.StatusOK, affiliate)
}

func (s *AffiliatesHandler) DeleteAffiliate(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid affiliate id"})
		return
	}

	res := s.db.Delete(&models.AffiliateSeller{}, id)
	if res.Error != nil {
		log.Printf("Error deleting affiliate %d: %v", id, res.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error deleting affiliate"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Affiliate not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
