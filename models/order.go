package models

import "time"

// Status order
const (
	OrderStatusCart      = "cart"
	OrderStatusSubmitted = "submitted"
	OrderStatusCompleted = "completed"
)

// Order adalah keranjang bersama: paling banyak satu order berstatus 'cart'
// per sesi, dimiliki semua participant (participant_id nil = milik bersama).
// Setelah submit, order berikutnya dialokasikan baru pada add pertama.
type Order struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	SessionID     uint        `gorm:"not null;index" json:"session_id"`
	Session       Session     `gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	ParticipantID *uint       `gorm:"index" json:"participant_id,omitempty"`
	Status        string      `gorm:"type:varchar(20);not null;default:'cart'" json:"status"`
	Subtotal      float64     `gorm:"type:decimal(10,2);not null;default:0.00" json:"subtotal"`
	SubmittedAt   *time.Time  `json:"submitted_at,omitempty"`
	CreatedAt     time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"not null" json:"updated_at"`
	OrderItems    []OrderItem `gorm:"foreignKey:OrderID" json:"order_items"`
}
