package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Selections adalah daftar kustomisasi berurutan, disimpan sebagai JSON text.
type Selections []string

func (s Selections) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *Selections) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported type %T for Selections", value)
	}
}

// OrderItem adalah satu baris keranjang. unit_price diambil saat item
// ditambahkan dan tidak pernah diturunkan ulang dari katalog.
type OrderItem struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	OrderID uint `gorm:"not null;index" json:"order_id"`
	// Omitting Order field from JSON to avoid recursive nesting
	Order                Order       `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	MenuID               uint        `gorm:"not null" json:"menu_id"`
	Menu                 Menu        `gorm:"foreignKey:MenuID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"menu"`
	Quantity             int         `gorm:"not null" json:"quantity"`
	UnitPrice            float64     `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	TotalPrice           float64     `gorm:"type:decimal(10,2);not null" json:"total_price"`
	Customizations       Selections  `gorm:"type:text" json:"customizations"`
	Notes                string      `gorm:"type:text" json:"notes"`
	AddedByParticipantID uint        `gorm:"not null;index" json:"added_by_participant_id"`
	AddedBy              Participant `gorm:"foreignKey:AddedByParticipantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"added_by,omitempty"`
	CreatedAt            time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time   `gorm:"not null" json:"updated_at"`
}
