package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/tablemate/tablemate/models"
	"github.com/tablemate/tablemate/utils"
	"gorm.io/gorm"
)

const (
	// ActivityThreshold adalah jendela aktivitas terakhir yang membuat sesi
	// lama diperpanjang alih-alih ditutup.
	ActivityThreshold = 30 * time.Minute

	// DefaultExtension dipakai saat sesi diperpanjang otomatis.
	DefaultExtension = 60 * time.Minute

	defaultSessionDuration = 90 * time.Minute
)

// Durasi sesi default per tipe restoran (menit); bisa di-override lewat
// Restaurant.SessionDurationMin.
var sessionDurationByType = map[string]int{
	models.RestaurantTypeFastFood:     45,
	models.RestaurantTypeCasualDining: 90,
	models.RestaurantTypeFineDining:   150,
	models.RestaurantTypeCafe:         60,
}

var ErrInvalidEndReason = errors.New("invalid session end reason")

var validEndReasons = map[string]bool{
	models.EndReasonCustomerLeft: true,
	models.EndReasonManualClose:  true,
	models.EndReasonNewCustomers: true,
	models.EndReasonStaffReset:   true,
}

// SessionService mengatur siklus hidup sesi meja: buat/pakai ulang,
// perpanjang, dan tutup.
type SessionService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSessionService(db *gorm.DB) *SessionService {
	return &SessionService{db: db, now: time.Now}
}

// ObtainSession mengembalikan sesi aktif untuk meja, membuat yang baru bila
// perlu. Protokolnya decide-and-act: dua pemanggil hampir bersamaan bisa
// sama-sama memutuskan sendiri; dampaknya dibatasi oleh index single-cart
// di lapisan store.
func (s *SessionService) ObtainSession(tableID, restaurantID uint) (*models.Session, error) {
	now := s.now()

	var existing models.Session
	err := s.db.
		Where("table_id = ? AND status = ? AND expires_at > ?",
			tableID, models.SessionStatusActive, now).
		Order("created_at DESC").
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.createSession(tableID, restaurantID, now)
		}
		return nil, fmt.Errorf("failed to query active session: %w", err)
	}

	var participants []models.Participant
	if err := s.db.Where("session_id = ?", existing.ID).Find(&participants).Error; err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	var orders []models.Order
	if err := s.db.Where("session_id = ?", existing.ID).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}

	// Belum ada aktivitas sama sekali: sesi hasil balapan pembuatan,
	// kembalikan apa adanya.
	if len(participants) == 0 && len(orders) == 0 {
		return &existing, nil
	}

	last := lastActivity(participants, orders)
	if !ShouldExtendSession(last, now) {
		// Sesi basi: kemungkinan rombongan lama sudah pergi.
		if err := s.EndSession(existing.ID, models.EndReasonNewCustomers); err != nil {
			return nil, err
		}
		return s.createSession(tableID, restaurantID, now)
	}

	// Masih ramai: perpanjang di tempat, identitas sesi tidak berubah.
	newExpiry := now.Add(DefaultExtension)
	if newExpiry.After(existing.ExpiresAt) {
		existing.ExpiresAt = newExpiry
		existing.UpdatedAt = now
		err = s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.Session{}).Where("id = ?", existing.ID).
				Updates(map[string]interface{}{
					"expires_at": existing.ExpiresAt,
					"updated_at": existing.UpdatedAt,
				}).Error; err != nil {
				return err
			}
			return recordChange(tx, "sessions", existing.ID, existing.ID,
				models.ActionUpdate, nil, nil, existing)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to extend session: %w", err)
		}
		utils.InfoLogger.Printf("Session %d extended until %s", existing.ID,
			existing.ExpiresAt.Format(time.RFC3339))
	}
	return &existing, nil
}

// ShouldExtendSession melaporkan apakah aktivitas terakhir masih di dalam
// ambang aktivitas. Tepat di ambang dihitung basi.
func ShouldExtendSession(lastActivity, now time.Time) bool {
	return now.Sub(lastActivity) < ActivityThreshold
}

func lastActivity(participants []models.Participant, orders []models.Order) time.Time {
	var last time.Time
	for _, p := range participants {
		if p.LastActiveAt.After(last) {
			last = p.LastActiveAt
		}
	}
	for _, o := range orders {
		if o.UpdatedAt.After(last) {
			last = o.UpdatedAt
		}
	}
	return last
}

func (s *SessionService) createSession(tableID, restaurantID uint, now time.Time) (*models.Session, error) {
	session := models.Session{
		TableID:      tableID,
		RestaurantID: restaurantID,
		Token:        utils.GenerateSessionToken(),
		Status:       models.SessionStatusActive,
		ExpiresAt:    now.Add(s.sessionDuration(restaurantID)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&session).Error; err != nil {
			return err
		}
		return recordChange(tx, "sessions", session.ID, session.ID,
			models.ActionInsert, nil, nil, session)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	utils.InfoLogger.Printf("New session %d created for table %d, expires %s",
		session.ID, tableID, session.ExpiresAt.Format(time.RFC3339))
	return &session, nil
}

func (s *SessionService) sessionDuration(restaurantID uint) time.Duration {
	var restaurant models.Restaurant
	if err := s.db.First(&restaurant, restaurantID).Error; err != nil {
		return defaultSessionDuration
	}
	if restaurant.SessionDurationMin != nil && *restaurant.SessionDurationMin > 0 {
		return time.Duration(*restaurant.SessionDurationMin) * time.Minute
	}
	if minutes, ok := sessionDurationByType[restaurant.Type]; ok {
		return time.Duration(minutes) * time.Minute
	}
	return defaultSessionDuration
}

// ExtendSession menambah expires_at tanpa syarat; dipakai untuk perpanjangan
// eksplisit oleh staff/customer, terpisah dari heuristik aktivitas.
func (s *SessionService) ExtendSession(sessionID uint, minutes int) (*models.Session, error) {
	var session models.Session
	if err := s.db.First(&session, sessionID).Error; err != nil {
		return nil, fmt.Errorf("failed to find session %d: %w", sessionID, err)
	}

	now := s.now()
	session.ExpiresAt = session.ExpiresAt.Add(time.Duration(minutes) * time.Minute)
	session.UpdatedAt = now

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Session{}).Where("id = ?", session.ID).
			Updates(map[string]interface{}{
				"expires_at": session.ExpiresAt,
				"updated_at": session.UpdatedAt,
			}).Error; err != nil {
			return err
		}
		return recordChange(tx, "sessions", session.ID, session.ID,
			models.ActionUpdate, nil, nil, session)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extend session %d: %w", sessionID, err)
	}
	return &session, nil
}

// EndSession menutup sesi dengan alasan untuk audit. Menutup sesi yang sudah
// completed adalah no-op sukses.
func (s *SessionService) EndSession(sessionID uint, reason string) error {
	if !validEndReasons[reason] {
		return ErrInvalidEndReason
	}

	var session models.Session
	if err := s.db.First(&session, sessionID).Error; err != nil {
		return fmt.Errorf("failed to find session %d: %w", sessionID, err)
	}
	if session.Status == models.SessionStatusCompleted {
		return nil
	}

	now := s.now()
	session.Status = models.SessionStatusCompleted
	session.EndReason = &reason
	session.EndedAt = &now
	session.UpdatedAt = now

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Session{}).Where("id = ?", session.ID).
			Updates(map[string]interface{}{
				"status":     session.Status,
				"end_reason": reason,
				"ended_at":   now,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}
		return recordChange(tx, "sessions", session.ID, session.ID,
			models.ActionUpdate, nil, nil, session)
	})
	if err != nil {
		return fmt.Errorf("failed to end session %d: %w", sessionID, err)
	}

	utils.InfoLogger.Printf("Session %d ended (%s)", sessionID, reason)
	return nil
}

// GetSessionByToken mencari sesi aktif yang belum kedaluwarsa dari token-nya;
// dipakai jalur subscribe websocket.
func (s *SessionService) GetSessionByToken(token string) (*models.Session, error) {
	var session models.Session
	err := s.db.
		Where("token = ? AND status = ? AND expires_at > ?",
			token, models.SessionStatusActive, s.now()).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetSession memuat satu sesi beserta participant-nya.
func (s *SessionService) GetSession(sessionID uint) (*models.Session, error) {
	var session models.Session
	if err := s.db.Preload("Participants").First(&session, sessionID).Error; err != nil {
		return nil, err
	}
	return &session, nil
}
