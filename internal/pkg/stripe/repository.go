package stripe

import (
	"time"

	"github.com/invobee/invobee/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations used by the entitlement reconciler.
type Repository interface {
	UpsertMapping(mapping *models.SubscriptionMapping) error
	GetMappingByCustomerID(providerCustomerID string) (*models.SubscriptionMapping, error)
	GetMappingByUserID(userID uint) (*models.SubscriptionMapping, error)

	GetOrCreateEntitlement(userID uint) (*models.Entitlement, error)
	SaveEntitlement(entitlement *models.Entitlement) error

	AppendBotLog(entry *models.BotLog) error

	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payments repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) UpsertMapping(mapping *models.SubscriptionMapping) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_customer_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"provider_subscription_id",
			"updated_at",
		}),
	}).Create(mapping).Error; err != nil {
		return err
	}

	return r.db.Where("provider = ? AND provider_customer_id = ?", mapping.Provider, mapping.ProviderCustomerID).
		First(mapping).Error
}

func (r *gormRepository) GetMappingByCustomerID(providerCustomerID string) (*models.SubscriptionMapping, error) {
	var mapping models.SubscriptionMapping
	err := r.db.Where("provider = ? AND provider_customer_id = ?", models.PaymentProviderStripe, providerCustomerID).
		First(&mapping).Error
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

func (r *gormRepository) GetMappingByUserID(userID uint) (*models.SubscriptionMapping, error) {
	var mapping models.SubscriptionMapping
	err := r.db.Where("provider = ? AND user_id = ?", models.PaymentProviderStripe, userID).
		First(&mapping).Error
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

func (r *gormRepository) GetOrCreateEntitlement(userID uint) (*models.Entitlement, error) {
	return models.GetOrCreateEntitlement(r.db, userID)
}

func (r *gormRepository) SaveEntitlement(entitlement *models.Entitlement) error {
	return r.db.Save(entitlement).Error
}

func (r *gormRepository) AppendBotLog(entry *models.BotLog) error {
	return r.db.Create(entry).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
