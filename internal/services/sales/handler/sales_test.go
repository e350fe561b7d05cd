package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"varejo-system/internal/database/models"
	"varejo-system/internal/middleware"
	"varejo-system/internal/utils"
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

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Client{},
		&models.PartnerProfile{},
		&models.AffiliateSeller{},
		&models.Sale{},
		&models.SaleItem{},
	))
	return db
}

func adminClaims() *utils.Claims {
	return &utils.Claims{UserId: 99, Username: "admin", Name: "Admin", Role: models.RoleAdmin}
}

func partnerClaims(userID int64) *utils.Claims {
	return &utils.Claims{UserId: userID, Username: "partner", Name: "Partner", Role: models.RolePartner}
}

func postSale(t *testing.T, s *SalesHandler, claims *utils.Claims, req CreateSaleRequest) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	if claims != nil {
		c.Set(middleware.CtxClaimsKey, claims)
	}

	s.CreateSale(c)
	return w
}

// assertAmount compares money strings by numeric value; sqlite may hand back
// "20" where postgres would say "20.00".
func assertAmount(t *testing.T, expected, actual string) {
	t.Helper()
	e := decimal.RequireFromString(expected)
	a := decimal.RequireFromString(actual)
	assert.Truef(t, e.Equal(a), "expected amount %s, got %s", expected, actual)
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price string, stock int32) models.Product {
	t.Helper()
	p := models.Product{Name: name, Category: "general", Price: price, CostPrice: "0.00", Stock: stock, MinStock: 5}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name   string
		paid   string
		total  string
		status string
	}{
		{"fully paid", "20.00", "20.00", models.SaleStatusCompleted},
		{"overpaid", "25.00", "20.00", models.SaleStatusCompleted},
		{"unpaid", "0", "20.00", models.SaleStatusOpen},
		{"partial", "5.00", "20.00", models.SaleStatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, deriveStatus(dec(tc.paid), dec(tc.total)))
		})
	}
}

func TestCreateSaleCompleted(t *testing.T) {
	db := setupDB(t)
	s := NewSalesHandler(db, nil)
	p := seedProduct(t, db, "Soda", "10.00", 10)

	w := postSale(t, s, adminClaims(), CreateSaleRequest{
		Items:      []SaleLineRequest{{ProductID: p.ID, Quantity: 2, Price: dec("10.00")}},
		AmountPaid: dec("20.00"),
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var sale models.Sale
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sale))
	assertAmount(t, "20.00", sale.Subtotal)
	assertAmount(t, "20.00", sale.Total)
	assertAmount(t, "0.00", sale.Discount)
	assert.Equal(t, models.SaleStatusCompleted, sale.Status)
	assert.Equal(t, "#0001", sale.Code)
	require.Len(t, sale.Items, 1)
	assertAmount(t, "20.00", sale.Items[0].Total)

	var product models.Product
	require.NoError(t, db.First(&product, p.ID).Error)
	assert.Equal(t, int32(8), product.Stock)
}

func TestCreateSalePartialPaymentUpdatesClientLedger(t *testing.T) {
	db := setupDB(t)
	s := NewSalesHandler(db, nil)
	p := seedProduct(t, db, "Soda", "10.00", 10)

	w := postSale(t, s, adminClaims(), CreateSaleRequest{
		Items:      []SaleLineRequest{{ProductID: p.ID, Quantity: 2, Price: dec("10.00")}},
		ClientName: "Maria Silva",
		AmountPaid: dec("5.00"),
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var sale models.Sale
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sale))
	assert.Equal(t, models.SaleStatusPending, sale.Status)
	require.NotNil(t, sale.ClientID)

	var client models.Client
	require.NoError(t, db.First(&client, *sale.ClientID).Error)
	assert.Equal(t, int32(1), client.TotalPurchases)
	assertAmount(t, "20.00", client.TotalSpent)
	assertAmount(t, "15.00", client.TotalDebt)
}

func TestCreateSaleZeroPaymentIsOpen(t *testing.T) {
	db := setupDB(t)
	s := NewSalesHandler(db, nil)
	p := seedProduct(t, db, "Soda", "10.00", 10)

	w := postSale(t, s, adminClaims(), CreateSaleRequest{
		Items: []SaleLineRequest{{ProductID: p.ID, Quantity: 1, Price: dec("10.00")}},
	})

	require.Equal(t, http.StatusCreated, w.Code)

	var sale models.Sale
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sale))
	assert.Equal(t, models.SaleStatusOpen, sale.Status)
}

func TestCreateSaleAppliesFlatDiscount(t *testing.T) {
	db := setupDB(t)
	s := NewSalesHandler(db, nil)
	p := seedProduct(t, db, "Soda", "10.00", 10)

	w := postSale(t, s, adminClaims(), CreateSaleRequest{
		Items:      []SaleLineRequest{{ProductID: p.ID, Quantity: 3, Price: dec("10.00")}},
		Discount:   dec("5.00"),
		AmountPaid: dec("25.00"),
	})

	require.Equal(t, http.StatusCreated, w.Code)

	var sale models.Sale
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sale))
	assertAmount(t, "30.00", sale.Subtotal)
	assertAmount(t, "25.00", sale.Total)
	assert.Equal(t, models.SaleStatusCompleted, sale.Status)
}

func TestCreateSaleCustomUnitPriceWins(t *testing.T) {
	db := setupDB(t)
	s := NewSalesHandler(db, nil)
	// Catalog says 10.00 but the request overrides to 7.50.
	p := seedProduct(t, db, "Soda", "10.00", 10)

	w := postSale(t, s, adminClaims(), CreateSaleRequest{
		Items:      []SaleLineRequest{{ProductID: p.ID, Quantity: 2, Price: dec("7.50")}},
		AmountPaid: dec("15.00"),
	})

	require.Equal(t, http.StatusCreated, w.Code)

	var sale models.Sale
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sale))
	assertAmount(t, "15.00", sale.Subtotal)
	assert.Equal(t, models.SaleStatusCompleted, sale.Status)
}

func TestCreateSaleInsufficientStockRejectsWithoutMutation(t *testing.T) {
	db := setupDB(t)
	s := NewSalesHandler(db, nil)
	p := seedProduct(t, db, "Soda", "10.00", 1)

	w := postSale(t, s, adminClaims(), CreateSaleRequest{
		Items:      []SaleLineRequest{{ProductID: p.ID, Quantity: 5, Price: dec("10.00")}},
		ClientName: "Maria Silva",
		AmountPaid: dec("50.00"),
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Insufficient stock")

	var saleCount int64
	require.NoError(t, db.Model(&models.Sale{}).Count(&saleCount).Error)
	assert.Equal(t, int64(0), saleCount)

	var product models.Product
	require.NoError(t, db.First(&product, p.ID).Error)
	assert.Equal(t, int32(1), product.Stock)
}

func TestCreateSaleUnknownProductRejected(t *testing.T) {
	db := setupDB(t)
	s := NewSalesHandler(db, nil)

	w := postSale(t, s, adminClaims(), CreateSaleRequest{
		Items: []SaleLineRequest{{ProductID: 999, Quantity: 1, Price: dec("10.00")}},
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Product not found")
}

func TestCreateSaleEmptyCartRejected(t *testing.T) {
	db := setupDB(t)
	s := NewSalesHandler(db, nil)

	w := postSale(t, s, adminClaims(), CreateSaleRequest{})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSaleShortCircuitsOnFirstBadLine(t *testing.T) {
	db := setupDB(t)
	s := NewSalesHandler(db, nil)
	p1 := seedProduct(t, db, "Soda", "10.00", 10)
	p2 := seedProduct(t, db, "Chips", "5.00", 0)

	w := postSale(t, s, adminClaims(), CreateSaleRequest{
		Items: []SaleLineRequest{
			{ProductID: p1.ID, Quantity: 2, Price: dec("10.00")},
			{ProductID: p2.ID, Quantity: 1, Price: dec("5.00")},
		},
		AmountPaid: dec("25.00"),
	})

	require.Equal(t, http.StatusBadRequest, w.Code)

	// The valid first line must not have been applied.
	var product models.Product
	require.NoError(t, db.First(&product, p1.ID).Error)
	assert.Equal(t, int32(10), product.Stock)

	var saleCount int64
	require.NoError(t, db.Model(&models.Sale{}).Count(&saleCount).Error)
	assert.Equal(t, int64(0), saleCount)
}

func TestClientResolutionIsCaseInsensitive(t *testing.T) {
	db := setupDB(t)
	s := NewSalesHandler(db, nil)
	p := seedProduct(t, db, "Soda", "10.00", 10)

	first := postSale(t, s, adminClaims(), CreateSaleRequest{
		Items:      []SaleLineRequest{{ProductID: p.ID, Quantity: 1, Price: dec("10.00")}},
		ClientName: "Maria Silva",
		AmountPaid: dec("10.00"),
	})
	require.Equal(t, http.StatusCreated, first.Code)

	second := postSale(t, s, adminClaims(), CreateSaleRequest{
		Items:      []SaleLineRequest{{ProductID: p.ID, Quantity: 1, Price: dec("10.00")}},
		ClientName: "maria silva",
		AmountPaid: dec("10.00"),
	})
	require.Equal(t, http.StatusCreated, second.Code)

	var clientCount int64
	require.NoError(t, db.Model(&models.Client{}).Count(&clientCount).Error)
	assert.Equal(t, int64(1), clientCount)

	var client models.Client
	require.NoError(t, db.First(&client).Error)
	assert.Equal(t, "Maria Silva", client.Name)
	assert.Equal(t, int32(2), client.TotalPurchases)
}

func TestCreateSaleByClientID(t *testing.T) {
	db := setupDB(t)
	s := NewSalesHandler(db, nil)
	p := seedProduct(t, db, "Soda", "10.00", 10)
	client := models.Client{Name: "Joao", TotalDebt: "0.00", TotalSpent: "0.00"}
	require.NoError(t, db.Create(&client).Error)

	w := postSale(t, s, adminClaims(), CreateSaleRequest{
		Items:      []SaleLineRequest{{ProductID: p.ID, Quantity: 1, Price: dec("10.00")}},
		ClientID:   &client.ID,
		AmountPaid: dec("10.00"),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var reloaded models.Client
	require.NoError(t, db.First(&reloaded, client.ID).Error)
	assert.Equal(t, int32(1), reloaded.TotalPurchases)
	assertAmount(t, "10.00", reloaded.TotalSpent)
	assertAmount(t, "0.00", reloaded.TotalDebt)
}

func TestPartnerCommissionAccrual(t *testing.T) {
	db := setupDB(t)
	s := NewSalesHandler(db, nil)
	p := seedProduct(t, db, "Soda", "10.00", 10)

	user := models.User{Name: "Partner", Username: "partner1", Password: "x", Role: models.RolePartner}
	require.NoError(t, db.Create(&user).Error)
	profile := models.PartnerProfile{
		UserID:            user.ID,
		Commission:        "10",
		CommissionBalance: "0.00",
		TotalCommission:   "0.00",
		TotalSales:        "0.00",
		Status:            models.StatusActive,
	}
	require.NoError(t, db.Create(&profile).Error)

	w := postSale(t, s, partnerClaims(user.ID), CreateSaleRequest{
		Items:      []SaleLineRequest{{ProductID: p.ID, Quantity: 2, Price: dec("10.00")}},
		AmountPaid: dec("20.00"),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var reloaded models.PartnerProfile
	require.NoError(t, db.First(&reloaded, profile.ID).Error)
	assertAmount(t, "2.00", reloaded.CommissionBalance)
	assertAmount(t, "2.00", reloaded.TotalCommission)
	assertAmount(t, "20.00", reloaded.TotalSales)
	assert.Equal(t, int32(2), reloaded.UnitsSold)
	assert.Equal(t, int32(2), reloaded.UnitProgress)
}

func TestInactivePartnerAccruesNothing(t *testing.T) {
	db := setupDB(t)
	s := NewSalesHandler(db, nil)
	p := seedProduct(t, db, "Soda", "10.00", 10)

	user := models.User{Name: "Partner", Username: "partner1", Password: "x", Role: models.RolePartner}
	require.NoError(t, db.Create(&user).Error)
	profile := models.PartnerProfile{
		UserID:            user.ID,
		Commission:        "10",
		CommissionBalance: "0.00",
		TotalCommission:   "0.00",
		TotalSales:        "0.00",
		Status:            models.StatusInactive,
	}
	require.NoError(t, db.Create(&profile).Error)

	w := postSale(t, s, partnerClaims(user.ID), CreateSaleRequest{
		Items:      []SaleLineRequest{{ProductID: p.ID, Quantity: 2, Price: dec("10.00")}},
		AmountPaid: dec("20.00"),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var reloaded models.PartnerProfile
	require.NoError(t, db.First(&reloaded, profile.ID).Error)
	assertAmount(t, "0.00", reloaded.CommissionBalance)
	assert.Equal(t, int32(0), reloaded.UnitsSold)
}

func TestSaleCodesAreSequentialAndUnique(t *testing.T) {
	db := setupDB(t)
	s := NewSalesHandler(db, nil)
	p := seedProduct(t, db, "Soda", "10.00", 100)

	codes := make(map[string]bool)
	for i := 0; i < 3; i++ {
		w := postSale(t, s, adminClaims(), CreateSaleRequest{
			Items:      []SaleLineRequest{{ProductID: p.ID, Quantity: 1, Price: dec("10.00")}},
			AmountPaid: dec("10.00"),
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var sale models.Sale
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sale))
		assert.False(t, codes[sale.Code], "duplicate sale code %s", sale.Code)
		codes[sale.Code] = true
	}
	assert.True(t, codes["#0001"])
	assert.True(t, codes["#0003"])
}

func TestListSalesScopedToPartner(t *testing.T) {
	db := setupDB(t)
	s := NewSalesHandler(db, nil)
	p := seedProduct(t, db, "Soda", "10.00", 100)

	partner := models.User{Name: "Partner", Username: "partner1", Password: "x", Role: models.RolePartner}
	require.NoError(t, db.Create(&partner).Error)

	w := postSale(t, s, adminClaims(), CreateSaleRequest{
		Items:      []SaleLineRequest{{ProductID: p.ID, Quantity: 1, Price: dec("10.00")}},
		AmountPaid: dec("10.00"),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = postSale(t, s, partnerClaims(partner.ID), CreateSaleRequest{
		Items:      []SaleLineRequest{{ProductID: p.ID, Quantity: 1, Price: dec("10.00")}},
		AmountPaid: dec("10.00"),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	list := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(list)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/sales", nil)
	c.Set(middleware.CtxClaimsKey, partnerClaims(partner.ID))
	s.ListSales(c)

	require.Equal(t, http.StatusOK, list.Code)
	var sales []models.Sale
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &sales))
	require.Len(t, sales, 1)
	assert.Equal(t, partner.ID, sales[0].UserID)
}

func TestListSalesAffiliateWithoutProfileGetsEmptyList(t *testing.T) {
	db := setupDB(t)
	s := NewSalesHandler(db, nil)

	claims := &utils.Claims{UserId: 42, Username: "aff", Name: "Aff", Role: models.RoleAffiliate}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/sales", nil)
	c.Set(middleware.CtxClaimsKey, claims)
	s.ListSales(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}
