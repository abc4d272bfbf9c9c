package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tablemate/tablemate/models"
	"github.com/tablemate/tablemate/realtime"
	"gorm.io/gorm"
)

// recordChange menulis satu baris change feed di dalam transaksi yang sama
// dengan mutasinya, sehingga event dan data tidak pernah terpisah.
func recordChange(tx *gorm.DB, tableName string, recordID, sessionID uint,
	action string, origin *uint, oldRow, newRow interface{}) error {

	rec := models.ChangeRecord{
		TableName:           tableName,
		RecordID:            recordID,
		SessionID:           sessionID,
		ActionType:          action,
		OriginParticipantID: origin,
		ChangedAt:           time.Now(),
	}

	if oldRow != nil {
		b, err := json.Marshal(oldRow)
		if err != nil {
			return fmt.Errorf("failed to marshal old row: %w", err)
		}
		s := string(b)
		rec.OldData = &s
	}
	if newRow != nil {
		b, err := json.Marshal(newRow)
		if err != nil {
			return fmt.Errorf("failed to marshal new row: %w", err)
		}
		s := string(b)
		rec.NewData = &s
	}

	return tx.Create(&rec).Error
}

// FeedMessage mengubah satu ChangeRecord menjadi pesan yang dikirim ke
// subscriber. Nama tabel menentukan topik event.
func FeedMessage(rec models.ChangeRecord) (realtime.Message, bool) {
	var event string
	switch rec.TableName {
	case "order_items":
		event = realtime.EventCartUpdate
	case "orders":
		event = realtime.EventOrderUpdate
	case "participants":
		event = realtime.EventParticipantUpdate
	case "sessions":
		event = realtime.EventSessionUpdate
	default:
		return realtime.Message{}, false
	}

	change := realtime.Change{
		EventType:           rec.ActionType,
		OriginParticipantID: rec.OriginParticipantID,
	}
	if rec.NewData != nil {
		change.New = json.RawMessage(*rec.NewData)
	}
	if rec.OldData != nil {
		change.Old = json.RawMessage(*rec.OldData)
	}

	return realtime.Message{Event: event, Data: change}, true
}
