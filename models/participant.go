package models

import "time"

// Participant adalah kehadiran satu orang di dalam sebuah sesi. Baris ini
// tidak pernah dihapus selama sesi aktif supaya atribusi item pesanan tetap
// utuh; keluar dari sesi hanya menandai has_left.
type Participant struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	SessionID    uint       `gorm:"not null;index" json:"session_id"`
	Session      Session    `gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	DisplayName  string     `gorm:"type:varchar(100);not null" json:"display_name"`
	ColorCode    string     `gorm:"type:varchar(7);not null" json:"color_code"`
	JoinedAt     time.Time  `gorm:"not null" json:"joined_at"`
	LastActiveAt time.Time  `gorm:"not null;index" json:"last_active_at"`
	HasLeft      bool       `gorm:"not null;default:false;index" json:"has_left"`
	LeftAt       *time.Time `json:"left_at,omitempty"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
}
