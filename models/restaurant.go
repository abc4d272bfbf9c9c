package models

import "time"

// Tipe restoran; menentukan durasi sesi default (lihat services).
const (
	RestaurantTypeFastFood     = "fast_food"
	RestaurantTypeCasualDining = "casual_dining"
	RestaurantTypeFineDining   = "fine_dining"
	RestaurantTypeCafe         = "cafe"
)

type Restaurant struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"type:varchar(255);not null" json:"name"`
	Type string `gorm:"type:varchar(30);not null;default:'casual_dining'" json:"type"`
	// SessionDurationMin override durasi default tipe restoran (menit).
	SessionDurationMin *int      `json:"session_duration_min,omitempty"`
	CreatedAt          time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time `gorm:"not null" json:"updated_at"`
}
