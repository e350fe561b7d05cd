package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"varejo-system/internal/database/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Product{}))
	return db
}

func doJSON(t *testing.T, handler gin.HandlerFunc, method, path string, body interface{}, params gin.Params) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, &buf)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = params
	handler(c)
	return w
}

func int32Ptr(i int32) *int32 {
	return &i
}

func TestCreateProductDefaults(t *testing.T) {
	db := setupDB(t)
	s := NewCatalogHandler(db, nil)

	w := doJSON(t, s.CreateProduct, http.MethodPost, "/api/v1/products", map[string]interface{}{
		"name":     "Soda",
		"category": "drinks",
		"price":    "4.50",
		"stock":    12,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var product models.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &product))
	assert.Equal(t, "4.50", product.Price)
	assert.Equal(t, "0.00", product.CostPrice)
	assert.Equal(t, int32(12), product.Stock)
	assert.Equal(t, int32(5), product.MinStock)
}

func TestCreateProductMissingFields(t *testing.T) {
	db := setupDB(t)
	s := NewCatalogHandler(db, nil)

	w := doJSON(t, s.CreateProduct, http.MethodPost, "/api/v1/products", map[string]interface{}{
		"name": "Soda",
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListProductsAlphabetical(t *testing.T) {
	db := setupDB(t)
	s := NewCatalogHandler(db, nil)

	require.NoError(t, db.Create(&models.Product{Name: "Zebra Cake", Category: "food", Price: "3.00", CostPrice: "0.00", Stock: 1, MinStock: 5}).Error)
	require.NoError(t, db.Create(&models.Product{Name: "Apple Juice", Category: "drinks", Price: "2.00", CostPrice: "0.00", Stock: 1, MinStock: 5}).Error)

	w := doJSON(t, s.ListProducts, http.MethodGet, "/api/v1/products", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var products []models.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
	require.Len(t, products, 2)
	assert.Equal(t, "Apple Juice", products[0].Name)
}

func TestListLowStock(t *testing.T) {
	db := setupDB(t)
	s := NewCatalogHandler(db, nil)

	require.NoError(t, db.Create(&models.Product{Name: "Low", Category: "food", Price: "3.00", CostPrice: "0.00", Stock: 2, MinStock: 5}).Error)
	require.NoError(t, db.Create(&models.Product{Name: "AtThreshold", Category: "food", Price: "3.00", CostPrice: "0.00", Stock: 5, MinStock: 5}).Error)
	require.NoError(t, db.Create(&models.Product{Name: "Healthy", Category: "food", Price: "3.00", CostPrice: "0.00", Stock: 50, MinStock: 5}).Error)

	w := doJSON(t, s.ListLowStock, http.MethodGet, "/api/v1/products/low-stock", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var products []models.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
	require.Len(t, products, 2)
	assert.Equal(t, "Low", products[0].Name)
}

func TestUpdateProduct(t *testing.T) {
	db := setupDB(t)
	s := NewCatalogHandler(db, nil)

	product := models.Product{Name: "Soda", Category: "drinks", Price: "4.50", CostPrice: "1.00", Stock: 12, MinStock: 5}
	require.NoError(t, db.Create(&product).Error)

	id := strconv.FormatInt(product.ID, 10)
	w := doJSON(t, s.UpdateProduct, http.MethodPut, "/api/v1/products/"+id, map[string]interface{}{
		"name":       "Soda Lata",
		"category":   "drinks",
		"price":      "5.00",
		"cost_price": "1.20",
		"stock":      20,
		"min_stock":  int32Ptr(8),
	}, gin.Params{{Key: "id", Value: id}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, product.ID).Error)
	assert.Equal(t, "Soda Lata", reloaded.Name)
	price := decimal.RequireFromString(reloaded.Price)
	assert.True(t, price.Equal(decimal.RequireFromString("5.00")), "price: %s", reloaded.Price)
	assert.Equal(t, int32(20), reloaded.Stock)
	assert.Equal(t, int32(8), reloaded.MinStock)
}

func TestDeleteProductNotFound(t *testing.T) {
	db := setupDB(t)
	s := NewCatalogHandler(db, nil)

	w := doJSON(t, s.DeleteProduct, http.MethodDelete, "/api/v1/products/999", nil,
		gin.Params{{Key: "id", Value: "999"}})
	require.Equal(t, http.StatusNotFound, w.Code)
}
