package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tablemate/tablemate/models"
	"github.com/tablemate/tablemate/utils"
	"gorm.io/gorm"
)

// ColorPalette adalah palet warna pembeda participant. Saat semua warna
// terpakai, penetapan berputar kembali ke awal (duplikat diperbolehkan).
var ColorPalette = []string{
	"#E6194B", // merah
	"#3CB44B", // hijau
	"#FFE119", // kuning
	"#4363D8", // biru
	"#F58231", // oranye
	"#911EB4", // ungu
	"#46F0F0", // cyan
	"#F032E6", // magenta
}

var (
	ErrNameTooShort     = errors.New("display name must be at least 3 characters")
	ErrSessionNotActive = errors.New("session is not active")
)

// ParticipantService mengurus keluar-masuknya orang di dalam sebuah sesi.
type ParticipantService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewParticipantService(db *gorm.DB) *ParticipantService {
	return &ParticipantService{db: db, now: time.Now}
}

// Join mendaftarkan satu orang ke sesi dan memberinya warna pertama yang
// belum dipakai participant yang masih hadir.
func (s *ParticipantService) Join(sessionID uint, displayName string) (*models.Participant, error) {
	displayName = strings.TrimSpace(displayName)
	if len(displayName) < 3 {
		return nil, ErrNameTooShort
	}

	var session models.Session
	if err := s.db.First(&session, sessionID).Error; err != nil {
		return nil, fmt.Errorf("failed to find session %d: %w", sessionID, err)
	}
	if session.Status != models.SessionStatusActive {
		return nil, ErrSessionNotActive
	}

	var present []models.Participant
	if err := s.db.
		Where("session_id = ? AND has_left = ?", sessionID, false).
		Order("joined_at ASC").
		Find(&present).Error; err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}

	now := s.now()
	participant := models.Participant{
		SessionID:    sessionID,
		DisplayName:  displayName,
		ColorCode:    pickColor(present),
		JoinedAt:     now,
		LastActiveAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&participant).Error; err != nil {
			return err
		}
		return recordChange(tx, "participants", participant.ID, sessionID,
			models.ActionInsert, &participant.ID, nil, participant)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to join session %d: %w", sessionID, err)
	}

	utils.InfoLogger.Printf("Participant %d (%s) joined session %d",
		participant.ID, displayName, sessionID)
	return &participant, nil
}

// pickColor mengembalikan warna palet pertama yang belum dipakai; bila palet
// habis, berputar berdasarkan jumlah yang hadir.
func pickColor(present []models.Participant) string {
	used := make(map[string]bool, len(present))
	for _, p := range present {
		used[p.ColorCode] = true
	}
	for _, color := range ColorPalette {
		if !used[color] {
			return color
		}
	}
	return ColorPalette[len(present)%len(ColorPalette)]
}

// Leave menandai participant keluar (soft-delete). Barisnya tetap ada agar
// atribusi item pesanan tidak hilang.
func (s *ParticipantService) Leave(participantID uint) error {
	var participant models.Participant
	if err := s.db.First(&participant, participantID).Error; err != nil {
		return fmt.Errorf("failed to find participant %d: %w", participantID, err)
	}
	if participant.HasLeft {
		return nil
	}

	now := s.now()
	participant.HasLeft = true
	participant.LeftAt = &now
	participant.UpdatedAt = now

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Participant{}).Where("id = ?", participantID).
			Updates(map[string]interface{}{
				"has_left":   true,
				"left_at":    now,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}
		return recordChange(tx, "participants", participantID, participant.SessionID,
			models.ActionUpdate, &participantID, nil, participant)
	})
	if err != nil {
		return fmt.Errorf("failed to leave: %w", err)
	}

	utils.InfoLogger.Printf("Participant %d left session %d", participantID, participant.SessionID)
	return nil
}

// Heartbeat membarukan last_active_at; sinyal ini juga jadi masukan heuristik
// perpanjangan sesi. Participant yang tidak ditemukan dilaporkan, bukan
// ditelan diam-diam.
func (s *ParticipantService) Heartbeat(participantID uint) error {
	result := s.db.Model(&models.Participant{}).
		Where("id = ?", participantID).
		Updates(map[string]interface{}{
			"last_active_at": s.now(),
			"updated_at":     s.now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to record heartbeat: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("participant %d: %w", participantID, gorm.ErrRecordNotFound)
	}
	return nil
}

// ListParticipants memuat semua participant sesi, termasuk yang sudah keluar
// (untuk atribusi riwayat), urut waktu bergabung.
func (s *ParticipantService) ListParticipants(sessionID uint) ([]models.Participant, error) {
	var participants []models.Participant
	err := s.db.
		Where("session_id = ?", sessionID).
		Order("joined_at ASC").
		Find(&participants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return participants, nil
}
