package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// User roles.
const (
	RoleAdmin     = "admin"
	RolePartner   = "partner"
	RoleAffiliate = "affiliate"
)

// Sale payment statuses, derived from amount_paid vs total.
const (
	SaleStatusOpen      = "open"      // nothing paid
	SaleStatusPending   = "pending"   // partially paid
	SaleStatusCompleted = "completed" // fully paid
)

// Profile statuses shared by partners and affiliates.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// StringArray stores a denormalized list of names as a JSON text column.
type StringArray []string

func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = []string{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("failed to scan StringArray: %v", value)
	}
}

func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	return json.Marshal(a)
}

type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(128);not null" json:"name"`
	Username  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"not null" json:"-"`
	Role      string    `gorm:"type:varchar(32);not null;default:'partner'" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PartnerProfile *PartnerProfile `gorm:"foreignKey:UserID" json:"partner_profile,omitempty"`
}

type Product struct {
	ID        int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string  `gorm:"type:varchar(128);not null" json:"name"`
	Category  string  `gorm:"type:varchar(64);not null" json:"category"`
	Price     string  `gorm:"type:decimal(18,2);not null" json:"price"`
	CostPrice string  `gorm:"type:decimal(18,2);not null;default:'0.00'" json:"cost_price"`
	Stock     int32   `gorm:"not null;default:0" json:"stock"`
	MinStock  int32   `gorm:"not null;default:5" json:"min_stock"`
	Image     *string `gorm:"type:varchar(256)" json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Client struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string    `gorm:"type:varchar(128);not null;index" json:"name"`
	Phone          string    `gorm:"type:varchar(32)" json:"phone"`
	TotalDebt      string    `gorm:"type:decimal(18,2);not null;default:'0.00'" json:"total_debt"`
	TotalSpent     string    `gorm:"type:decimal(18,2);not null;default:'0.00'" json:"total_spent"`
	TotalPurchases int32     `gorm:"not null;default:0" json:"total_purchases"`
	TotalUnits     int32     `gorm:"not null;default:0" json:"total_units"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PartnerProfile links a user to the commission ledger. Created explicitly,
// never implicitly by sales.
type PartnerProfile struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	Commission        string    `gorm:"type:decimal(5,2);not null" json:"commission"`
	CommissionBalance string    `gorm:"type:decimal(18,2);not null;default:'0.00'" json:"commission_balance"`
	TotalCommission   string    `gorm:"type:decimal(18,2);not null;default:'0.00'" json:"total_commission"`
	TotalSales        string    `gorm:"type:decimal(18,2);not null;default:'0.00'" json:"total_sales"`
	UnitsSold         int32     `gorm:"not null;default:0" json:"units_sold"`
	UnitProgress      int32     `gorm:"not null;default:0" json:"unit_progress"`
	Status            string    `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

type AffiliateSeller struct {
	ID         int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string      `gorm:"type:varchar(128);not null" json:"name"`
	StoreName  string      `gorm:"type:varchar(128);not null" json:"store_name"`
	Commission string      `gorm:"type:decimal(5,2);not null;default:'0.00'" json:"commission"`
	Sellers    StringArray `gorm:"type:text" json:"sellers"`
	Status     string      `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
	UserID     *int64      `gorm:"index" json:"user_id,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

type Sale struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Code              string    `gorm:"type:varchar(16);uniqueIndex" json:"code"`
	Subtotal          string    `gorm:"type:decimal(18,2);not null" json:"subtotal"`
	Discount          string    `gorm:"type:decimal(18,2);not null;default:'0.00'" json:"discount"`
	Total             string    `gorm:"type:decimal(18,2);not null" json:"total"`
	PaymentMethod     string    `gorm:"type:varchar(32)" json:"payment_method"`
	AmountPaid        string    `gorm:"type:decimal(18,2);not null;default:'0.00'" json:"amount_paid"`
	Status            string    `gorm:"type:varchar(16);not null;index" json:"status"`
	Date              time.Time `gorm:"not null;index" json:"date"`
	UserID            int64     `gorm:"not null;index" json:"user_id"`
	ClientID          *int64    `gorm:"index" json:"client_id,omitempty"`
	AffiliateSellerID *int64    `gorm:"index" json:"affiliate_seller_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	Items           []SaleItem       `gorm:"foreignKey:SaleID" json:"items"`
	User            *User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Client          *Client          `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	AffiliateSeller *AffiliateSeller `gorm:"foreignKey:AffiliateSellerID" json:"affiliate_seller,omitempty"`
}

// SaleItem rows are created together with their Sale and are immutable after
// that.
type SaleItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SaleID    int64     `gorm:"index;not null" json:"sale_id"`
	ProductID int64     `gorm:"not null" json:"product_id"`
	Quantity  int32     `gorm:"not null" json:"quantity"`
	Price     string    `gorm:"type:decimal(18,2);not null" json:"price"`
	Total     string    `gorm:"type:decimal(18,2);not null" json:"total"`
	CreatedAt time.Time `json:"created_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}
