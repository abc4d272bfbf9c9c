package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tablemate/tablemate/database"
	"github.com/tablemate/tablemate/models"
	"github.com/tablemate/tablemate/projection"
	"github.com/tablemate/tablemate/realtime"
	"github.com/tablemate/tablemate/router"
	"github.com/tablemate/tablemate/services"
	"github.com/tablemate/tablemate/utils"
)

func setupIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open in-memory sqlite: %v", err)
	}

	err = db.AutoMigrate(
		&models.Restaurant{},
		&models.Table{},
		&models.Session{},
		&models.Participant{},
		&models.MenuCategory{},
		&models.Menu{},
		&models.Order{},
		&models.OrderItem{},
		&models.ChangeRecord{},
	)
	require.NoError(t, err)
	require.NoError(t, database.EnsureConstraints(db))
	return db
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// doJSON menjalankan satu request lewat router asli dan membongkar envelope.
func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env
}

// storeLoader memenuhi projection.Loader langsung di atas service layer,
// persis sumber data yang dipakai endpoint full reload.
type storeLoader struct {
	carts        *services.CartService
	participants *services.ParticipantService
}

func (l *storeLoader) CartSnapshot(sessionID uint) (*models.Order, error) {
	return l.carts.CartSnapshot(sessionID)
}

func (l *storeLoader) ListParticipants(sessionID uint) ([]models.Participant, error) {
	return l.participants.ListParticipants(sessionID)
}

// drainChanges memainkan peran monitor + websocket: ambil change record yang
// belum diproses berurutan, kirim ke semua projection, tandai processed.
func drainChanges(t *testing.T, db *gorm.DB, projections ...*projection.Projection) {
	t.Helper()

	var records []models.ChangeRecord
	db.Where("processed = ?", false).Order("changed_at ASC, id ASC").Find(&records)

	for _, rec := range records {
		msg, ok := services.FeedMessage(rec)
		if ok {
			for _, p := range projections {
				var err error
				switch msg.Event {
				case realtime.EventCartUpdate:
					err = p.ApplyCartChange(msg.Data)
				case realtime.EventOrderUpdate:
					err = p.ApplyOrderChange(msg.Data)
				case realtime.EventParticipantUpdate:
					err = p.ApplyParticipantChange(msg.Data)
				}
				assert.NoError(t, err)
			}
		}
		db.Model(&models.ChangeRecord{}).Where("id = ?", rec.ID).Update("processed", true)
	}
}

func cartOrderCount(db *gorm.DB, sessionID uint) int64 {
	var n int64
	db.Model(&models.Order{}).
		Where("session_id = ? AND status = ?", sessionID, models.OrderStatusCart).
		Count(&n)
	return n
}

// Skenario dua orang di satu meja: scan, join, bangun keranjang bersama,
// submit, lanjut ronde berikutnya. Projection tiap klien dijaga sinkron
// lewat kombinasi write-then-reload dan event feed.
func TestTwoParticipantsShareOneCart(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := setupIntegrationDB(t)
	r := router.SetupRouter(db)

	restaurant := models.Restaurant{Name: "Kopi Tenda", Type: models.RestaurantTypeCasualDining}
	db.Create(&restaurant)
	table := models.Table{RestaurantID: restaurant.ID, TableNumber: "B2", Capacity: 4}
	db.Create(&table)
	category := models.MenuCategory{Name: "Utama"}
	db.Create(&category)
	menuX := models.Menu{CategoryID: category.ID, Name: "Nasi Goreng", Price: 5.00, Available: true}
	db.Create(&menuX)
	menuY := models.Menu{CategoryID: category.ID, Name: "Es Teh", Price: 3.50, Available: true}
	db.Create(&menuY)

	// --- scan QR: sesi meja terbentuk -------------------------------
	code, env := doJSON(t, r, http.MethodPost, "/sessions", gin.H{
		"table_id":      table.ID,
		"restaurant_id": restaurant.ID,
	})
	require.Equal(t, http.StatusOK, code)

	var obtained struct {
		Session   models.Session `json:"session"`
		Remaining string         `json:"remaining"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &obtained))
	session := obtained.Session
	require.NotZero(t, session.ID)
	assert.NotEmpty(t, obtained.Remaining)

	// Scan kedua dari meja yang sama memakai sesi yang sama.
	code, env = doJSON(t, r, http.MethodPost, "/sessions", gin.H{
		"table_id":      table.ID,
		"restaurant_id": restaurant.ID,
	})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &obtained))
	assert.Equal(t, session.ID, obtained.Session.ID)

	// Klien yang hanya menyimpan token bisa menemukan kembali sesinya.
	utils.InitDB(db)
	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set("X-Session-Token", session.Token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var byToken envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &byToken))
	require.NoError(t, json.Unmarshal(byToken.Data, &obtained))
	assert.Equal(t, session.ID, obtained.Session.ID)

	// Token ngawur ditolak sebelum menyentuh handler.
	req = httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set("X-Session-Token", "not-a-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// --- dua orang join ---------------------------------------------
	joinPath := fmt.Sprintf("/sessions/%d/participants", session.ID)

	code, env = doJSON(t, r, http.MethodPost, joinPath, gin.H{"display_name": "Andi"})
	require.Equal(t, http.StatusCreated, code)
	var andi models.Participant
	require.NoError(t, json.Unmarshal(env.Data, &andi))
	assert.Equal(t, services.ColorPalette[0], andi.ColorCode)

	code, env = doJSON(t, r, http.MethodPost, joinPath, gin.H{"display_name": "Budi"})
	require.Equal(t, http.StatusCreated, code)
	var budi models.Participant
	require.NoError(t, json.Unmarshal(env.Data, &budi))
	assert.Equal(t, services.ColorPalette[1], budi.ColorCode)

	// --- projection tiap klien: subscribe dulu, baru load -----------
	loader := &storeLoader{
		carts:        services.NewCartService(db),
		participants: services.NewParticipantService(db),
	}
	viewAndi := projection.New(session.ID, andi.ID, loader)
	viewBudi := projection.New(session.ID, budi.ID, loader)
	for _, view := range []*projection.Projection{viewAndi, viewBudi} {
		view.OnConnecting()
		require.NoError(t, view.OnSubscribed())
		require.Equal(t, projection.ViewReady, view.ViewState())
	}
	drainChanges(t, db, viewAndi, viewBudi)

	assert.Len(t, viewAndi.Participants(), 2)
	assert.Len(t, viewBudi.Participants(), 2)
	assert.Empty(t, viewAndi.Lines())

	// --- Andi menambah Nasi Goreng x2 -------------------------------
	itemsPath := fmt.Sprintf("/sessions/%d/cart/items", session.ID)

	code, env = doJSON(t, r, http.MethodPost, itemsPath, gin.H{
		"participant_id": andi.ID,
		"menu_id":        menuX.ID,
		"quantity":       2,
	})
	require.Equal(t, http.StatusCreated, code)
	var lineX models.OrderItem
	require.NoError(t, json.Unmarshal(env.Data, &lineX))
	assert.InDelta(t, 5.00, lineX.UnitPrice, 0.001)

	require.NoError(t, viewAndi.Reload())
	drainChanges(t, db, viewAndi, viewBudi)

	assert.InDelta(t, 10.00, viewAndi.Total(), 0.001)
	assert.InDelta(t, 10.00, viewBudi.Total(), 0.001)

	// --- Budi menambah Es Teh x1 ------------------------------------
	code, env = doJSON(t, r, http.MethodPost, itemsPath, gin.H{
		"participant_id": budi.ID,
		"menu_id":        menuY.ID,
		"quantity":       1,
	})
	require.Equal(t, http.StatusCreated, code)
	var lineY models.OrderItem
	require.NoError(t, json.Unmarshal(env.Data, &lineY))

	require.NoError(t, viewBudi.Reload())
	drainChanges(t, db, viewAndi, viewBudi)

	assert.InDelta(t, 13.50, viewAndi.Total(), 0.001)
	assert.InDelta(t, 13.50, viewBudi.Total(), 0.001)
	assert.Len(t, viewAndi.Lines(), 2)

	// Kedua baris ada di satu order yang sama.
	assert.Equal(t, lineX.OrderID, lineY.OrderID)
	assert.EqualValues(t, 1, cartOrderCount(db, session.ID))

	// --- Andi menghapus barisnya ------------------------------------
	removePath := fmt.Sprintf("/cart/items/%d?participant_id=%d", lineX.ID, andi.ID)
	code, _ = doJSON(t, r, http.MethodDelete, removePath, nil)
	require.Equal(t, http.StatusOK, code)

	require.NoError(t, viewAndi.Reload())
	drainChanges(t, db, viewAndi, viewBudi)

	assert.InDelta(t, 3.50, viewAndi.Total(), 0.001)
	assert.InDelta(t, 3.50, viewBudi.Total(), 0.001)

	// --- submit: keranjang menjadi snapshot tak tersentuh -----------
	submitPath := fmt.Sprintf("/orders/%d/submit?participant_id=%d", lineY.OrderID, budi.ID)
	code, env = doJSON(t, r, http.MethodPost, submitPath, nil)
	require.Equal(t, http.StatusOK, code)
	var submitted models.Order
	require.NoError(t, json.Unmarshal(env.Data, &submitted))
	assert.Equal(t, models.OrderStatusSubmitted, submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)
	assert.WithinDuration(t, time.Now(), *submitted.SubmittedAt, 5*time.Second)

	require.NoError(t, viewBudi.Reload())
	drainChanges(t, db, viewAndi, viewBudi)

	assert.Empty(t, viewAndi.Lines())
	assert.Empty(t, viewBudi.Lines())
	assert.Zero(t, viewAndi.Total())
	assert.EqualValues(t, 0, cartOrderCount(db, session.ID))

	// --- ronde berikutnya: add pertama membuat cart baru ------------
	code, env = doJSON(t, r, http.MethodPost, itemsPath, gin.H{
		"participant_id": budi.ID,
		"menu_id":        menuY.ID,
		"quantity":       2,
	})
	require.Equal(t, http.StatusCreated, code)
	var lineNext models.OrderItem
	require.NoError(t, json.Unmarshal(env.Data, &lineNext))
	assert.NotEqual(t, lineY.OrderID, lineNext.OrderID)

	require.NoError(t, viewBudi.Reload())
	drainChanges(t, db, viewAndi, viewBudi)

	assert.Len(t, viewAndi.Lines(), 1)
	assert.InDelta(t, 7.00, viewAndi.Total(), 0.001)
	assert.InDelta(t, 7.00, viewBudi.Total(), 0.001)
	assert.EqualValues(t, 1, cartOrderCount(db, session.ID))

	// Order yang sudah disubmit tidak tersentuh ronde baru.
	var frozen models.Order
	require.NoError(t, db.Preload("OrderItems").First(&frozen, lineY.OrderID).Error)
	assert.Equal(t, models.OrderStatusSubmitted, frozen.Status)
	assert.Len(t, frozen.OrderItems, 1)
}

// Sesi yang diakhiri menolak join baru, dan scan berikutnya mendapat sesi baru.
func TestEndedSessionRejectsJoinAndRotates(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := setupIntegrationDB(t)
	r := router.SetupRouter(db)

	restaurant := models.Restaurant{Name: "Kopi Tenda", Type: models.RestaurantTypeCafe}
	db.Create(&restaurant)
	table := models.Table{RestaurantID: restaurant.ID, TableNumber: "C1", Capacity: 2}
	db.Create(&table)

	code, env := doJSON(t, r, http.MethodPost, "/sessions", gin.H{
		"table_id":      table.ID,
		"restaurant_id": restaurant.ID,
	})
	require.Equal(t, http.StatusOK, code)
	var obtained struct {
		Session models.Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &obtained))
	first := obtained.Session

	endPath := fmt.Sprintf("/sessions/%d/end", first.ID)
	code, _ = doJSON(t, r, http.MethodPatch, endPath, gin.H{"reason": models.EndReasonManualClose})
	require.Equal(t, http.StatusOK, code)

	// Join ke sesi yang sudah ditutup ditolak.
	joinPath := fmt.Sprintf("/sessions/%d/participants", first.ID)
	code, _ = doJSON(t, r, http.MethodPost, joinPath, gin.H{"display_name": "Candra"})
	assert.Equal(t, http.StatusConflict, code)

	// Scan berikutnya membuat sesi baru untuk meja yang sama.
	code, env = doJSON(t, r, http.MethodPost, "/sessions", gin.H{
		"table_id":      table.ID,
		"restaurant_id": restaurant.ID,
	})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &obtained))
	assert.NotEqual(t, first.ID, obtained.Session.ID)
	assert.NotEqual(t, first.Token, obtained.Session.Token)
}
