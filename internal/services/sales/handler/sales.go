package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"varejo-system/internal/database/models"
	"varejo-system/internal/middleware"
	"varejo-system/internal/scope"
)

const (
	CATALOG_PRODUCT_CACHE_KEY = "catalog:products"
)

type SalesHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewSalesHandler(db *gorm.DB, redisClient *redis.Client) *SalesHandler {
	return &SalesHandler{
		db:    db,
		redis: redisClient,
	}
}

// Request structs
type SaleLineRequest struct {
	ProductID int64           `json:"product_id" binding:"required"`
	Quantity  int32           `json:"quantity" binding:"required,min=1"`
	Price     decimal.Decimal `json:"price" binding:"required"`
}

type CreateSaleRequest struct {
	Items             []SaleLineRequest `json:"items" binding:"required,min=1"`
	PaymentMethod     string            `json:"payment_method"`
	Discount          decimal.Decimal   `json:"discount"`
	ClientID          *int64            `json:"client_id,omitempty"`
	ClientName        string            `json:"client_name,omitempty"`
	AffiliateSellerID *int64            `json:"affiliate_seller_id,omitempty"`
	AmountPaid        decimal.Decimal   `json:"amount_paid"`
}

func (s *SalesHandler) invalidateCatalogCache(ctx context.Context) {
	if s.redis != nil {
		_ = s.redis.Del(ctx, CATALOG_PRODUCT_CACHE_KEY)
	}
}

// deriveStatus maps the paid amount onto the three-way payment status.
func deriveStatus(amountPaid, total decimal.Decimal) string {
	switch {
	case amountPaid.GreaterThanOrEqual(total):
		return models.SaleStatusCompleted
	case amountPaid.IsZero():
		return models.SaleStatusOpen
	default:
		return models.SaleStatusPending
	}
}

// resolveClient reuses an existing client by case-insensitive name match or
// creates a bare one. A request naming neither id nor name yields no client.
func (s *SalesHandler) resolveClient(req CreateSaleRequest) (*int64, error) {
	if req.ClientID != nil {
		return req.ClientID, nil
	}
	if req.ClientName == "" {
		return nil, nil
	}

	var existing models.Client
	err := s.db.Where("LOWER(name) = LOWER(?)", req.ClientName).First(&existing).Error
	if err == nil {
		return &existing.ID, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	client := models.Client{
		Name:       req.ClientName,
		TotalDebt:  "0.00",
		TotalSpent: "0.00",
	}
	if err := s.db.Create(&client).Error; err != nil {
		return nil, err
	}
	return &client.ID, nil
}

// CreateSale posts a sale: validates the cart against current stock, computes
// totals from the requested unit prices, then atomically persists the sale
// with its items, decrements product stock and bumps the client and partner
// ledgers. Any failure inside the transaction rolls everything back.
func (s *SalesHandler) CreateSale(c *gin.Context) {
	claims := middleware.SessionClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No items in sale"})
		return
	}

	clientID, err := s.resolveClient(req)
	if err != nil {
		log.Printf("Error resolving client: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing sale"})
		return
	}

	// Validate stock and compute totals before any write. The first failing
	// line aborts the whole submission.
	subtotal := decimal.Zero
	var totalUnits int32
	saleItems := make([]models.SaleItem, 0, len(req.Items))
	for _, line := range req.Items {
		var product models.Product
		if err := s.db.First(&product, line.ProductID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Product not found: %d", line.ProductID)})
				return
			}
			log.Printf("Error loading product %d: %v", line.ProductID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing sale"})
			return
		}

		if product.Stock < line.Quantity {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Insufficient stock for: %s", product.Name)})
			return
		}

		// Unit price comes from the request, not the catalog. Custom and
		// discounted pricing is decided by the caller.
		lineTotal := line.Price.Mul(decimal.NewFromInt32(line.Quantity))
		subtotal = subtotal.Add(lineTotal)
		totalUnits += line.Quantity

		saleItems = append(saleItems, models.SaleItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.Price.StringFixed(2),
			Total:     lineTotal.StringFixed(2),
		})
	}

	total := subtotal.Sub(req.Discount)
	status := deriveStatus(req.AmountPaid, total)
	now := time.Now()

	sale := models.Sale{
		Subtotal:          subtotal.StringFixed(2),
		Discount:          req.Discount.StringFixed(2),
		Total:             total.StringFixed(2),
		PaymentMethod:     req.PaymentMethod,
		AmountPaid:        req.AmountPaid.StringFixed(2),
		Status:            status,
		Date:              now,
		UserID:            claims.UserId,
		ClientID:          clientID,
		AffiliateSellerID: req.AffiliateSellerID,
		Items:             saleItems,
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// The display code comes from the sale's own sequence value, so it is
	// created NULL and filled in before commit. The unique index stays
	// enforceable without a random-collision window.
	if err := tx.Omit("Code").Create(&sale).Error; err != nil {
		tx.Rollback()
		log.Printf("Error creating sale: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing sale"})
		return
	}

	code := fmt.Sprintf("#%04d", sale.ID)
	if err := tx.Model(&models.Sale{}).Where("id = ?", sale.ID).UpdateColumn("code", code).Error; err != nil {
		tx.Rollback()
		log.Printf("Error assigning sale code: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing sale"})
		return
	}
	sale.Code = code

	// Guarded decrement: a concurrent sale may have depleted stock since
	// validation, in which case zero rows match and the sale rolls back.
	for _, item := range saleItems {
		res := tx.Model(&models.Product{}).
			Where("id = ? AND stock >= ?", item.ProductID, item.Quantity).
			UpdateColumn("stock", gorm.Expr("stock - ?", item.Quantity))
		if res.Error != nil {
			tx.Rollback()
			log.Printf("Error decrementing stock for product %d: %v", item.ProductID, res.Error)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing sale"})
			return
		}
		if res.RowsAffected == 0 {
			tx.Rollback()
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Insufficient stock for product %d", item.ProductID)})
			return
		}
	}

	if clientID != nil {
		debt := total.Sub(req.AmountPaid)
		if debt.IsNegative() {
			debt = decimal.Zero
		}
		err := tx.Model(&models.Client{}).Where("id = ?", *clientID).UpdateColumns(map[string]interface{}{
			"total_purchases": gorm.Expr("total_purchases + 1"),
			"total_spent":     gorm.Expr("total_spent + ?", total.StringFixed(2)),
			"total_debt":      gorm.Expr("total_debt + ?", debt.StringFixed(2)),
		}).Error
		if err != nil {
			tx.Rollback()
			log.Printf("Error updating client ledger: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing sale"})
			return
		}
	}

	if claims.Role == models.RolePartner {
		if err := s.accruePartnerCommission(tx, claims.UserId, total, totalUnits); err != nil {
			tx.Rollback()
			log.Printf("Error accruing partner commission: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing sale"})
			return
		}
	}

	if err := tx.Commit().Error; err != nil {
		log.Printf("Error committing sale: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing sale"})
		return
	}

	s.invalidateCatalogCache(c.Request.Context())

	if err := s.db.Preload("Items.Product").Preload("Client").First(&sale, sale.ID).Error; err != nil {
		log.Printf("Error reloading sale %d: %v", sale.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing sale"})
		return
	}

	c.JSON(http.StatusCreated, sale)
}

// accruePartnerCommission bumps the partner ledger for the registering user.
// Users without an active profile accrue nothing; that is not an error.
func (s *SalesHandler) accruePartnerCommission(tx *gorm.DB, userID int64, total decimal.Decimal, units int32) error {
	var profile models.PartnerProfile
	err := tx.Where("user_id = ? AND status = ?", userID, models.StatusActive).First(&profile).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	rate, err := decimal.NewFromString(profile.Commission)
	if err != nil {
		return fmt.Errorf("partner %d has malformed commission rate %q: %w", profile.ID, profile.Commission, err)
	}
	commission := total.Mul(rate).Div(decimal.NewFromInt(100))

	return tx.Model(&models.PartnerProfile{}).Where("id = ?", profile.ID).UpdateColumns(map[string]interface{}{
		"total_sales":        gorm.Expr("total_sales + ?", total.StringFixed(2)),
		"total_commission":   gorm.Expr("total_commission + ?", commission.StringFixed(2)),
		"commission_balance": gorm.Expr("commission_balance + ?", commission.StringFixed(2)),
		"units_sold":         gorm.Expr("units_sold + ?", units),
		"unit_progress":      gorm.Expr("unit_progress + ?", units),
	}).Error
}

// ListSales returns the caller's sales, newest first.
func (s *SalesHandler) ListSales(c *gin.Context) {
	claims := middleware.SessionClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	sc, err := scope.Resolve(s.db, claims)
	if err == scope.ErrUnknownRole {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}
	if err != nil {
		log.Printf("Error resolving sales scope: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching sales"})
		return
	}

	sales := make([]models.Sale, 0)
	if sc.Empty() {
		c.JSON(http.StatusOK, sales)
		return
	}

	err = sc.Filter(s.db).
		Order("date DESC").
		Preload("Items.Product").
		Preload("Client").
		Preload("User").
		Find(&sales).Error
	if err != nil {
		log.Printf("Error fetching sales: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching sales"})
		return
	}

	c.JSON(http.StatusOK, sales)
}

// GetSale returns one sale if it falls inside the caller's scope.
func (s *SalesHandler) GetSale(c *gin.Context) {
	claims := middleware.SessionClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sale id"})
		return
	}

	sc, err := scope.Resolve(s.db, claims)
	if err == scope.ErrUnknownRole {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}
	if err != nil {
		log.Printf("Error resolving sales scope: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching sale"})
		return
	}

	var sale models.Sale
	if sc.Empty() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Sale not found"})
		return
	}

	err = sc.Filter(s.db.Where("id = ?", id)).
		Preload("Items.Product").
		Preload("Client").
		Preload("User").
		First(&sale).Error
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Sale not found"})
		return
	}
	if err != nil {
		log.Printf("Error fetching sale %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching sale"})
		return
	}

	c.JSON(http.StatusOK, sale)
}
