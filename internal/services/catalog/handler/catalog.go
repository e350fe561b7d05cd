package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"varejo-system/internal/database/models"
)

const (
	CATALOG_PRODUCT_CACHE_KEY = "catalog:products"
	CACHE_TTL_SHORT           = 5 * time.Minute
)

type CatalogHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewCatalogHandler(db *gorm.DB, redisClient *redis.Client) *CatalogHandler {
	return &CatalogHandler{
		db:    db,
		redis: redisClient,
	}
}

func (s *CatalogHandler) InvalidateCatalogCaches(ctx context.Context) {
	if s.redis != nil {
		_ = s.redis.Del(ctx, CATALOG_PRODUCT_CACHE_KEY)
	}
}

// Request structs
type CreateProductRequest struct {
	Name      string           `json:"name" binding:"required"`
	Category  string           `json:"category" binding:"required"`
	Price     decimal.Decimal  `json:"price" binding:"required"`
	CostPrice *decimal.Decimal `json:"cost_price,omitempty"`
	Stock     *int32           `json:"stock" binding:"required"`
	MinStock  *int32           `json:"min_stock,omitempty"`
	Image     *string          `json:"image,omitempty"`
}

type UpdateProductRequest struct {
	Name      string          `json:"name" binding:"required"`
	Category  string          `json:"category" binding:"required"`
	Price     decimal.Decimal `json:"price" binding:"required"`
	CostPrice decimal.Decimal `json:"cost_price"`
	Stock     *int32          `json:"stock" binding:"required"`
	MinStock  *int32          `json:"min_stock,omitempty"`
	Image     *string         `json:"image,omitempty"`
}

// ListProducts returns the catalog alphabetically, served from redis when the
// cached copy is still warm.
func (s *CatalogHandler) ListProducts(c *gin.Context) {
	ctx := c.Request.Context()

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, CATALOG_PRODUCT_CACHE_KEY).Result(); err == nil {
			var products []models.Product
			if json.Unmarshal([]byte(cached), &products) == nil {
				c.JSON(http.StatusOK, products)
				return
			}
		}
	}

	products := make([]models.Product, 0)
	if err := s.db.Order("name ASC").Find(&products).Error; err != nil {
		log.Printf("Error fetching products: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching products"})
		return
	}

	if s.redis != nil {
		if payload, err := json.Marshal(products); err == nil {
			_ = s.redis.Set(ctx, CATALOG_PRODUCT_CACHE_KEY, payload, CACHE_TTL_SHORT)
		}
	}

	c.JSON(http.StatusOK, products)
}

// ListLowStock returns products at or below their reorder threshold.
func (s *CatalogHandler) ListLowStock(c *gin.Context) {
	products := make([]models.Product, 0)
	err := s.db.Where("stock <= min_stock").Order("stock ASC").Find(&products).Error
	if err != nil {
		log.Printf("Error fetching low-stock products: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching products"})
		return
	}

	c.JSON(http.StatusOK, products)
}

func (s *CatalogHandler) GetProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product id"})
		return
	}

	var product models.Product
	if err := s.db.First(&product, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		log.Printf("Error fetching product %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching product"})
		return
	}

	c.JSON(http.StatusOK, product)
}

func (s *CatalogHandler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	costPrice := decimal.Zero
	if req.CostPrice != nil {
		costPrice = *req.CostPrice
	}
	minStock := int32(5)
	if req.MinStock != nil {
		minStock = *req.MinStock
	}

	product := models.Product{
		Name:      req.Name,
		Category:  req.Category,
		Price:     req.Price.StringFixed(2),
		CostPrice: costPrice.StringFixed(2),
		Stock:     *req.Stock,
		MinStock:  minStock,
		Image:     req.Image,
	}

	if err := s.db.Create(&product).Error; err != nil {
		log.Printf("Error creating product: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating product"})
		return
	}

	s.InvalidateCatalogCaches(c.Request.Context())
	c.JSON(http.StatusCreated, product)
}

func (s *CatalogHandler) UpdateProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product id"})
		return
	}

	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	var product models.Product
	if err := s.db.First(&product, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		log.Printf("Error fetching product %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error updating product"})
		return
	}

	product.Name = req.Name
	product.Category = req.Category
	product.Price = req.Price.StringFixed(2)
	product.CostPrice = req.CostPrice.StringFixed(2)
	product.Stock = *req.Stock
	if req.MinStock != nil {
		product.MinStock = *req.MinStock
	}
	if req.Image != nil {
		product.Image = req.Image
	}

	if err := s.db.Save(&product).Error; err != nil {
		log.Printf("Error updating product %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error updating product"})
		return
	}

	s.InvalidateCatalogCaches(c.Request.Context())
	c.JSON(http.StatusOK, product)
}

func (s *CatalogHandler) DeleteProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product id"})
		return
	}

	res := s.db.Delete(&models.Product{}, id)
	if res.Error != nil {
		log.Printf("Error deleting product %d: %v", id, res.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error deleting product"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	s.InvalidateCatalogCaches(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"success": true})
}
