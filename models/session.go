package models

import "time"

// Status sesi meja
const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
)

// Alasan sesi ditutup (disimpan untuk audit)
const (
	EndReasonCustomerLeft = "customer_left"
	EndReasonManualClose  = "manual_close"
	EndReasonNewCustomers = "new_customers"
	EndReasonStaffReset   = "staff_reset"
)

// Session merepresentasikan satu jendela makan di satu meja. Semua participant
// dan order milik bersama di bawah sesi ini.
type Session struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	TableID      uint          `gorm:"not null;index" json:"table_id"`
	Table        Table         `gorm:"foreignKey:TableID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	RestaurantID uint          `gorm:"not null;index" json:"restaurant_id"`
	Restaurant   Restaurant    `gorm:"foreignKey:RestaurantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Token        string        `gorm:"type:varchar(64);uniqueIndex;not null" json:"token"`
	Status       string        `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	ExpiresAt    time.Time     `gorm:"not null;index" json:"expires_at"`
	EndReason    *string       `gorm:"type:varchar(30)" json:"end_reason,omitempty"`
	EndedAt      *time.Time    `json:"ended_at,omitempty"`
	CreatedAt    time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"not null" json:"updated_at"`
	Participants []Participant `gorm:"foreignKey:SessionID" json:"participants,omitempty"`
	Orders       []Order       `gorm:"foreignKey:SessionID" json:"orders,omitempty"`
}
