package entitlements

import (
	"fmt"
	"time"

	"github.com/invobee/invobee/app/models"
	"github.com/invobee/invobee/internal/pkg/cache"
	"gorm.io/gorm"
)

const planCacheTTL = 5 * time.Minute

func planCacheKey(userID uint) string {
	return fmt.Sprintf("user_plan:%d", userID)
}

// PlanForUser returns the user's current plan tier, served from cache when
// possible. Unknown users get the free tier.
func PlanForUser(db *gorm.DB, userID uint) string {
	if cached, err := cache.Get(planCacheKey(userID)); err == nil && cached != "" {
		return NormalizePlan(cached)
	}

	entitlement, err := models.GetOrCreateEntitlement(db, userID)
	if err != nil {
		return PlanFree
	}
	plan := NormalizePlan(entitlement.Plan)
	_ = cache.Set(planCacheKey(userID), plan, planCacheTTL)
	return plan
}

// InvalidatePlanCache drops the cached tier after a reconciliation write.
func InvalidatePlanCache(userID uint) {
	_ = cache.Delete(planCacheKey(userID))
}
