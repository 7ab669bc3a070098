// Package sales holds the point-of-sale records the reports are computed from.
// The POS owns these tables; the reporting code only reads them.
package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is one completed sale
type Invoice struct {
	ID       int64     `gorm:"primaryKey;autoIncrement"`
	UserID   int64     `gorm:"not null;index"`
	CreateAt time.Time `gorm:"column:create_at;not null;index"`
}

// TableName returns the table name for GORM
func (Invoice) TableName() string {
	return "invoices"
}

// InvoiceDetail is one line item of an invoice
type InvoiceDetail struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	InvoiceID int64           `gorm:"not null;index"`
	ProductID int64           `gorm:"not null;index"`
	Qty       int64           `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:decimal(20,4);not null"`
}

// TableName returns the table name for GORM
func (InvoiceDetail) TableName() string {
	return "invoice_details"
}

// LineTotal is qty times price
func (d InvoiceDetail) LineTotal() decimal.Decimal {
	return d.Price.Mul(decimal.NewFromInt(d.Qty))
}

// User is the cashier or account an invoice is attributed to
type User struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"type:varchar(255);not null"`
}

// TableName returns the table name for GORM
func (User) TableName() string {
	return "users"
}
