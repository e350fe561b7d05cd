package handler

import (
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"varejo-system/internal/database/models"
	"varejo-system/internal/middleware"
	"varejo-system/internal/scope"
)

// ReportsHandler serves the role-scoped dashboard rollups. Everything here is
// read-only and recomputed per request; aggregates are never cached.
type ReportsHandler struct {
	db *gorm.DB
}

func NewReportsHandler(db *gorm.DB) *ReportsHandler {
	return &ReportsHandler{db: db}
}

type RecentSale struct {
	ID       int64     `json:"id"`
	Customer string    `json:"customer"`
	Amount   string    `json:"amount"`
	Status   string    `json:"status"`
	Date     time.Time `json:"date"`
}

type DayTotal struct {
	Day   string `json:"day"`
	Total string `json:"total"`
}

// DashboardStats computes the caller's rollup: revenue over completed sales,
// sale count, five most recent sales and a zero-filled last-7-days series.
// Admins additionally get active partner/affiliate counts.
func (s *ReportsHandler) DashboardStats(c *gin.Context) {
	claims := middleware.SessionClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	sc, err := scope.Resolve(s.db, claims)
	if err == scope.ErrUnknownRole {
		c.JSON(http.StatusForbidden, gin.H{"error": "Role not supported"})
		return
	}
	if err != nil {
		log.Printf("Error resolving dashboard scope: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching dashboard stats"})
		return
	}

	if sc.Empty() {
		c.JSON(http.StatusOK, gin.H{
			"total_revenue":     "0.00",
			"total_sales_count": 0,
			"recent_sales":      []RecentSale{},
			"sales_by_day":      emptySeries(time.Now()),
		})
		return
	}

	revenue, err := s.completedRevenue(sc)
	if err != nil {
		log.Printf("Error computing revenue: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching dashboard stats"})
		return
	}

	var salesCount int64
	if err := sc.Filter(s.db.Model(&models.Sale{})).Count(&salesCount).Error; err != nil {
		log.Printf("Error counting sales: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching dashboard stats"})
		return
	}

	recent, err := s.recentSales(sc)
	if err != nil {
		log.Printf("Error fetching recent sales: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching dashboard stats"})
		return
	}

	series, err := s.salesByDay(sc, time.Now())
	if err != nil {
		log.Printf("Error computing sales series: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching dashboard stats"})
		return
	}

	resp := gin.H{
		"total_revenue":     revenue.StringFixed(2),
		"total_sales_count": salesCount,
		"recent_sales":      recent,
		"sales_by_day":      series,
	}

	if _, isAdmin := sc.(scope.AdminScope); isAdmin {
		var partnerCount, affiliateCount int64
		if err := s.db.Model(&models.PartnerProfile{}).Where("status = ?", models.StatusActive).Count(&partnerCount).Error; err != nil {
			log.Printf("Error counting partners: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching dashboard stats"})
			return
		}
		if err := s.db.Model(&models.AffiliateSeller{}).Where("status = ?", models.StatusActive).Count(&affiliateCount).Error; err != nil {
			log.Printf("Error counting affiliates: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching dashboard stats"})
			return
		}
		resp["active_partners_count"] = partnerCount
		resp["active_affiliates_count"] = affiliateCount
	}

	c.JSON(http.StatusOK, resp)
}

func (s *ReportsHandler) completedRevenue(sc scope.SaleScope) (decimal.Decimal, error) {
	var raw sql.NullString
	err := sc.Filter(s.db.Model(&models.Sale{})).
		Where("status = ?", models.SaleStatusCompleted).
		Select("SUM(total)").
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !raw.Valid {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw.String)
}

func (s *ReportsHandler) recentSales(sc scope.SaleScope) ([]RecentSale, error) {
	var sales []models.Sale
	err := sc.Filter(s.db).
		Order("date DESC").
		Limit(5).
		Preload("Client").
		Find(&sales).Error
	if err != nil {
		return nil, err
	}

	recent := make([]RecentSale, 0, len(sales))
	for _, sale := range sales {
		customer := "Unknown client"
		if sale.Client != nil {
			customer = sale.Client.Name
		}
		recent = append(recent, RecentSale{
			ID:       sale.ID,
			Customer: customer,
			Amount:   sale.Total,
			Status:   sale.Status,
			Date:     sale.Date,
		})
	}
	return recent, nil
}

// salesByDay sums completed sales per calendar day over the trailing week.
// Grouping happens here rather than in SQL so days with no sales still appear.
func (s *ReportsHandler) salesByDay(sc scope.SaleScope, now time.Time) ([]DayTotal, error) {
	since := startOfDay(now.AddDate(0, 0, -6))

	var sales []models.Sale
	err := sc.Filter(s.db).
		Where("status = ? AND date >= ?", models.SaleStatusCompleted, since).
		Find(&sales).Error
	if err != nil {
		return nil, err
	}

	totals := make(map[string]decimal.Decimal)
	for _, sale := range sales {
		key := sale.Date.Format("2006-01-02")
		total, err := decimal.NewFromString(sale.Total)
		if err != nil {
			return nil, err
		}
		totals[key] = totals[key].Add(total)
	}

	series := make([]DayTotal, 0, 7)
	for i := 0; i < 7; i++ {
		d := startOfDay(now.AddDate(0, 0, i-6))
		series = append(series, DayTotal{
			Day:   d.Format("Mon"),
			Total: totals[d.Format("2006-01-02")].StringFixed(2),
		})
	}
	return series, nil
}

func emptySeries(now time.Time) []DayTotal {
	series := make([]DayTotal, 0, 7)
	for i := 0; i < 7; i++ {
		d := startOfDay(now.AddDate(0, 0, i-6))
		series = append(series, DayTotal{Day: d.Format("Mon"), Total: "0.00"})
	}
	return series
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
