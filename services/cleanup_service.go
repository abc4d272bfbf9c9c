package services

import (
	"fmt"
	"time"

	"github.com/tablemate/tablemate/models"
	"github.com/tablemate/tablemate/utils"
	"gorm.io/gorm"
)

const (
	sweepInterval    = 1 * time.Minute
	archiveRetention = 7 * 24 * time.Hour
	cleanupBatchSize = 100
)

// CleanupService menegakkan kedaluwarsa secara malas: sesi aktif yang lewat
// expires_at ditutup oleh sweep periodik, bukan oleh countdown hidup, dan
// sesi completed yang sudah tua diarsip (dihapus fisik) per batch.
type CleanupService struct {
	db       *gorm.DB
	now      func() time.Time
	StopChan chan struct{}
}

func NewCleanupService(db *gorm.DB) *CleanupService {
	return &CleanupService{
		db:       db,
		now:      time.Now,
		StopChan: make(chan struct{}),
	}
}

// StartSweeper menjalankan CleanupExpired pada interval tetap.
func (s *CleanupService) StartSweeper() {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.CleanupExpired(); err != nil {
					utils.ErrorLogger.Printf("Cleanup sweep failed: %v", err)
				}
			case <-s.StopChan:
				return
			}
		}
	}()
}

func (s *CleanupService) Stop() {
	close(s.StopChan)
}

// CleanupExpired menutup semua sesi aktif yang sudah lewat expires_at, lalu
// menghapus sesi completed yang melewati jendela retensi. Keduanya dibatasi
// per batch supaya sweep tidak memegang store terlalu lama.
func (s *CleanupService) CleanupExpired() error {
	now := s.now()

	for {
		var expired []models.Session
		err := s.db.
			Where("status = ? AND expires_at <= ?", models.SessionStatusActive, now).
			Limit(cleanupBatchSize).
			Find(&expired).Error
		if err != nil {
			return fmt.Errorf("failed to query expired sessions: %w", err)
		}
		if len(expired) == 0 {
			break
		}

		ids := make([]uint, 0, len(expired))
		for _, sess := range expired {
			ids = append(ids, sess.ID)
		}
		err = s.db.Model(&models.Session{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":     models.SessionStatusCompleted,
				"end_reason": models.EndReasonCustomerLeft,
				"ended_at":   now,
				"updated_at": now,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to complete expired sessions: %w", err)
		}
		utils.InfoLogger.Printf("Completed %d expired sessions", len(expired))

		if len(expired) < cleanupBatchSize {
			break
		}
	}

	return s.archiveOldSessions(now)
}

func (s *CleanupService) archiveOldSessions(now time.Time) error {
	cutoff := now.Add(-archiveRetention)

	for {
		var old []models.Session
		err := s.db.
			Where("status = ? AND updated_at < ?", models.SessionStatusCompleted, cutoff).
			Limit(cleanupBatchSize).
			Find(&old).Error
		if err != nil {
			return fmt.Errorf("failed to query archivable sessions: %w", err)
		}
		if len(old) == 0 {
			return nil
		}

		ids := make([]uint, 0, len(old))
		for _, sess := range old {
			ids = append(ids, sess.ID)
		}

		// Hapus anak-anaknya dulu; store test (sqlite) tidak selalu
		// menjalankan cascade.
		err = s.db.Transaction(func(tx *gorm.DB) error {
			var orderIDs []uint
			if err := tx.Model(&models.Order{}).
				Where("session_id IN ?", ids).
				Pluck("id", &orderIDs).Error; err != nil {
				return err
			}
			if len(orderIDs) > 0 {
				if err := tx.Where("order_id IN ?", orderIDs).
					Delete(&models.OrderItem{}).Error; err != nil {
					return err
				}
				if err := tx.Where("id IN ?", orderIDs).
					Delete(&models.Order{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("session_id IN ?", ids).
				Delete(&models.Participant{}).Error; err != nil {
				return err
			}
			return tx.Where("id IN ?", ids).Delete(&models.Session{}).Error
		})
		if err != nil {
			return fmt.Errorf("failed to archive sessions: %w", err)
		}
		utils.InfoLogger.Printf("Archived %d completed sessions", len(old))

		if len(old) < cleanupBatchSize {
			return nil
		}
	}
}
