package repository

import (
	"github.com/invobee/invobee/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
}

// InvoiceRepository defines the interface for invoice-related database operations
type InvoiceRepository interface {
	Create(invoice *models.Invoice) error
	GetByID(id uint) (*models.Invoice, error)
	GetByUserAndID(userID, id uint) (*models.Invoice, error)
	GetByUserID(userID uint, status string, offset, limit int) ([]models.Invoice, error)
	CountByUserID(userID uint) (int64, error)
	Update(invoice *models.Invoice) error
	Delete(userID, id uint) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User    UserRepository
	Invoice InvoiceRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:    NewUserRepository(db),
		Invoice: NewInvoiceRepository(db),
	}
}
