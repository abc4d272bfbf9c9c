package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tablemate/tablemate/models"
	"github.com/tablemate/tablemate/realtime"
)

func TestMutationsWriteChangeRecords(t *testing.T) {
	db := setupTestDB()
	session := seedSession(db)
	menu := seedMenu(db, "Tempe", 1.00)

	psvc := NewParticipantService(db)
	a, _ := psvc.Join(session.ID, "Andi")

	csvc := NewCartService(db)
	item, _ := csvc.AddItem(session.ID, a.ID, menu.ID, 2, nil, "")
	_ = csvc.RemoveItem(item.ID, &a.ID)

	var records []models.ChangeRecord
	db.Where("table_name = ? AND session_id = ?", "order_items", session.ID).
		Order("changed_at ASC").Find(&records)

	assert.Len(t, records, 2)
	assert.Equal(t, models.ActionInsert, records[0].ActionType)
	assert.NotNil(t, records[0].NewData)
	assert.Equal(t, models.ActionDelete, records[1].ActionType)
	assert.NotNil(t, records[1].OldData)
	assert.Equal(t, a.ID, *records[1].OriginParticipantID)
}

func TestFeedMessageMapsTablesToEvents(t *testing.T) {
	newData := `{"id":1}`
	cases := map[string]string{
		"order_items":  realtime.EventCartUpdate,
		"orders":       realtime.EventOrderUpdate,
		"participants": realtime.EventParticipantUpdate,
		"sessions":     realtime.EventSessionUpdate,
	}

	for table, event := range cases {
		msg, ok := FeedMessage(models.ChangeRecord{
			TableName:  table,
			ActionType: models.ActionInsert,
			NewData:    &newData,
		})
		assert.True(t, ok)
		assert.Equal(t, event, msg.Event)
		assert.Equal(t, models.ActionInsert, msg.Data.EventType)
	}

	_, ok := FeedMessage(models.ChangeRecord{TableName: "menus"})
	assert.False(t, ok)
}

func TestCheckChangesMarksProcessed(t *testing.T) {
	db := setupTestDB()
	session := seedSession(db)

	psvc := NewParticipantService(db)
	_, err := psvc.Join(session.ID, "Andi")
	assert.NoError(t, err)

	monitor := NewChangeMonitor(db)
	monitor.CheckChanges()

	var unprocessed int64
	db.Model(&models.ChangeRecord{}).Where("processed = ?", false).Count(&unprocessed)
	assert.Zero(t, unprocessed)
}
