package quickbooks

import (
	"time"

	"github.com/invobee/invobee/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations used by the token manager and the
// sync engine.
type Repository interface {
	GetIntegration(userID uint) (*models.Integration, error)
	UpsertIntegration(integration *models.Integration) error
	UpdateIntegrationToken(id uint, accessToken string, expiresAt time.Time) error
	DeleteIntegration(userID uint) error

	GetInvoiceForUser(userID, invoiceID uint) (*models.Invoice, error)
	UpdateInvoiceSyncStatus(invoiceID uint, status string) error

	AppendSyncRecord(record *models.SyncRecord) error
	ListSyncHistory(userID uint, offset, limit int) ([]models.SyncRecord, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a QuickBooks repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetIntegration(userID uint) (*models.Integration, error) {
	var integration models.Integration
	err := r.db.Where("user_id = ? AND integration_name = ?", userID, models.IntegrationQuickBooks).
		First(&integration).Error
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

func (r *gormRepository) UpsertIntegration(integration *models.Integration) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "integration_name"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token",
			"refresh_token",
			"expires_at",
			"updated_at",
		}),
	}).Create(integration).Error; err != nil {
		return err
	}

	return r.db.Where("user_id = ? AND integration_name = ?", integration.UserID, integration.IntegrationName).
		First(integration).Error
}

func (r *gormRepository) UpdateIntegrationToken(id uint, accessToken string, expiresAt time.Time) error {
	return r.db.Model(&models.Integration{}).Where("id = ?", id).Updates(map[string]interface{}{
		"access_token": accessToken,
		"expires_at":   expiresAt,
	}).Error
}

func (r *gormRepository) DeleteIntegration(userID uint) error {
	return r.db.Where("user_id = ? AND integration_name = ?", userID, models.IntegrationQuickBooks).
		Delete(&models.Integration{}).Error
}

func (r *gormRepository) GetInvoiceForUser(userID, invoiceID uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.Where("id = ? AND user_id = ?", invoiceID, userID).First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *gormRepository) UpdateInvoiceSyncStatus(invoiceID uint, status string) error {
	return r.db.Model(&models.Invoice{}).Where("id = ?", invoiceID).
		Update("sync_status", status).Error
}

func (r *gormRepository) AppendSyncRecord(record *models.SyncRecord) error {
	return r.db.Create(record).Error
}

func (r *gormRepository) ListSyncHistory(userID uint, offset, limit int) ([]models.SyncRecord, error) {
	var records []models.SyncRecord
	err := r.db.Preload("Invoice").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&records).Error
	return records, err
}
