package models

import "time"

// Aksi change feed
const (
	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// ChangeRecord adalah satu event change feed. Ditulis oleh service yang
// memutasi dalam transaksi yang sama dengan mutasinya, lalu di-broadcast oleh
// ChangeMonitor ke semua subscriber sesi terkait. OldData/NewData menyimpan
// citra baris sebelum/sesudah sebagai JSON.
type ChangeRecord struct {
	ID                  uint      `gorm:"primaryKey"`
	TableName           string    `gorm:"type:varchar(50);not null;index:idx_table_action"`
	RecordID            uint      `gorm:"not null"`
	SessionID           uint      `gorm:"not null;index"`
	ActionType          string    `gorm:"type:varchar(10);not null;index:idx_table_action"`
	OriginParticipantID *uint     `gorm:"index"`
	OldData             *string   `gorm:"type:text"`
	NewData             *string   `gorm:"type:text"`
	ChangedAt           time.Time `gorm:"not null;index"`
	Processed           bool      `gorm:"default:false;index:idx_processed"`
}
