package repository

import (
	"github.com/invobee/invobee/app/models"
	"gorm.io/gorm"
)

// invoiceRepository implements the InvoiceRepository interface
type invoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository instance
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

// Create creates a new invoice in the database
func (r *invoiceRepository) Create(invoice *models.Invoice) error {
	return r.db.Create(invoice).Error
}

// GetByID retrieves an invoice by its ID
func (r *invoiceRepository) GetByID(id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.First(&invoice, id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetByUserAndID retrieves an invoice scoped to its owner
func (r *invoiceRepository) GetByUserAndID(userID, id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetByUserID lists a user's invoices, newest first, optionally filtered by
// sync status
func (r *invoiceRepository) GetByUserID(userID uint, status string, offset, limit int) ([]models.Invoice, error) {
	query := r.db.Where("user_id = ?", userID).Order("created_at DESC")
	if status != "" {
		query = query.Where("sync_status = ?", status)
	}

	var invoices []models.Invoice
	err := query.Offset(offset).Limit(limit).Find(&invoices).Error
	return invoices, err
}

// CountByUserID counts all invoices owned by a user
func (r *invoiceRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Invoice{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// Update saves changes to an existing invoice
func (r *invoiceRepository) Update(invoice *models.Invoice) error {
	return r.db.Save(invoice).Error
}

// Delete removes an invoice scoped to its owner
func (r *invoiceRepository) Delete(userID, id uint) error {
	return r.db.Where("user_id = ?", userID).Delete(&models.Invoice{}, id).Error
}
