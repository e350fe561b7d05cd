// Package scope resolves the caller's role into a closed set of access
// variants, once per request. Sale listings and dashboard aggregates apply the
// resulting filter instead of re-branching on the role string.
package scope

import (
	"errors"

	"gorm.io/gorm"

	"varejo-system/internal/database/models"
	"varejo-system/internal/utils"
)

// ErrUnknownRole marks a principal whose role has no aggregation view.
var ErrUnknownRole = errors.New("role has no sales scope")

// SaleScope filters sale queries down to what the caller may see.
type SaleScope interface {
	// Filter narrows a query over models.Sale.
	Filter(db *gorm.DB) *gorm.DB
	// Empty reports whether the scope can never match a sale, e.g. an
	// affiliate user with no linked seller profile.
	Empty() bool
}

// AdminScope sees every sale.
type AdminScope struct{}

func (AdminScope) Filter(db *gorm.DB) *gorm.DB { return db }
func (AdminScope) Empty() bool                 { return false }

// PartnerScope sees sales registered by the partner's own user.
type PartnerScope struct {
	UserID int64
}

func (s PartnerScope) Filter(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}
func (PartnerScope) Empty() bool { return false }

// AffiliateScope sees sales attributed to the caller's affiliate seller.
type AffiliateScope struct {
	AffiliateSellerID int64
	// Missing is set when the user has no affiliate profile yet; such a
	// caller gets empty results rather than an error.
	Missing bool
}

func (s AffiliateScope) Filter(db *gorm.DB) *gorm.DB {
	return db.Where("affiliate_seller_id = ?", s.AffiliateSellerID)
}
func (s AffiliateScope) Empty() bool { return s.Missing }

// Resolve maps the session principal onto its scope variant. Affiliate
// resolution needs one profile lookup.
func Resolve(db *gorm.DB, claims *utils.Claims) (SaleScope, error) {
	switch claims.Role {
	case models.RoleAdmin:
		return AdminScope{}, nil
	case models.RolePartner:
		return PartnerScope{UserID: claims.UserId}, nil
	case models.RoleAffiliate:
		var profile models.AffiliateSeller
		err := db.Where("user_id = ?", claims.UserId).First(&profile).Error
		if err == gorm.ErrRecordNotFound {
			return AffiliateScope{Missing: true}, nil
		}
		if err != nil {
			return nil, err
		}
		return AffiliateScope{AffiliateSellerID: profile.ID}, nil
	default:
		return nil, ErrUnknownRole
	}
}
