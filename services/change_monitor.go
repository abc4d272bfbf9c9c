package services

import (
	"time"

	"github.com/tablemate/tablemate/models"
	"github.com/tablemate/tablemate/realtime"
	"github.com/tablemate/tablemate/utils"
	"gorm.io/gorm"
)

// ChangeMonitor mem-polling baris change feed yang belum diproses dan
// menyiarkannya ke subscriber websocket sesi terkait. Delivery-nya
// at-least-once: baris baru ditandai processed setelah broadcast.
type ChangeMonitor struct {
	DB       *gorm.DB
	StopChan chan struct{}
	Interval time.Duration
}

func NewChangeMonitor(db *gorm.DB) *ChangeMonitor {
	return &ChangeMonitor{
		DB:       db,
		StopChan: make(chan struct{}),
		Interval: 500 * time.Millisecond,
	}
}

func (cm *ChangeMonitor) Start() {
	go func() {
		ticker := time.NewTicker(cm.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cm.CheckChanges()
			case <-cm.StopChan:
				return
			}
		}
	}()
}

func (cm *ChangeMonitor) Stop() {
	close(cm.StopChan)
}

// CheckChanges memproses satu batch change record, urut waktu perubahan.
func (cm *ChangeMonitor) CheckChanges() {
	var changes []models.ChangeRecord

	tx := cm.DB.Begin()

	if err := tx.Where("processed = ?", false).
		Order("changed_at ASC").
		Limit(100).
		Find(&changes).Error; err != nil {
		tx.Rollback()
		utils.ErrorLogger.Printf("Error fetching changes: %v", err)
		return
	}

	for _, change := range changes {
		if msg, ok := FeedMessage(change); ok {
			realtime.Broadcast(change.SessionID, msg)
		}

		if err := tx.Model(&models.ChangeRecord{}).
			Where("id = ?", change.ID).
			Update("processed", true).Error; err != nil {
			tx.Rollback()
			utils.ErrorLogger.Printf("Error marking change as processed: %v", err)
			return
		}
	}

	if err := tx.Commit().Error; err != nil {
		utils.ErrorLogger.Printf("Error committing change batch: %v", err)
		tx.Rollback()
		return
	}

	if len(changes) > 0 {
		utils.InfoLogger.Printf("Broadcast %d changes", len(changes))
	}
}
