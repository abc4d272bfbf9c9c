package services

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tablemate/tablemate/models"
	"github.com/tablemate/tablemate/utils"
	"gorm.io/gorm"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	ErrOrderNotCart    = errors.New("order is no longer a cart")
)

// CartService adalah engine keranjang bersama: semua participant satu sesi
// membaca dan menulis line item order 'cart' yang sama. Setiap mutasi
// di-commit sendiri-sendiri; konsistensinya eventual lewat semantik
// idempoten, reload-setelah-tulis di mutator, dan fan-out change feed ke
// pengamat lain.
type CartService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCartService(db *gorm.DB) *CartService {
	return &CartService{db: db, now: time.Now}
}

// GetOrCreateCartOrder mengembalikan order 'cart' milik sesi, membuatnya bila
// belum ada. Dua pemanggil bersamaan bisa sama-sama melihat "belum ada";
// index unik single-cart membuat insert kedua bentrok, dan bentrokan itu
// dipulihkan dengan memakai order milik pemenang.
func (s *CartService) GetOrCreateCartOrder(sessionID, actingParticipantID uint) (*models.Order, error) {
	var order models.Order
	err := s.db.
		Where("session_id = ? AND status = ?", sessionID, models.OrderStatusCart).
		First(&order).Error
	if err == nil {
		return &order, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to query cart order: %w", err)
	}
	return s.createCartOrder(sessionID, actingParticipantID)
}

func (s *CartService) createCartOrder(sessionID, actingParticipantID uint) (*models.Order, error) {
	now := s.now()
	order := models.Order{
		SessionID: sessionID,
		Status:    models.OrderStatusCart,
		Subtotal:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		return recordChange(tx, "orders", order.ID, sessionID,
			models.ActionInsert, &actingParticipantID, nil, order)
	})
	if err != nil {
		if isDuplicateKeyErr(err) {
			// Kalah balapan: ada yang sudah membuat cart, pakai punya dia.
			var winner models.Order
			if qErr := s.db.
				Where("session_id = ? AND status = ?", sessionID, models.OrderStatusCart).
				First(&winner).Error; qErr != nil {
				return nil, fmt.Errorf("failed to recover cart order: %w", qErr)
			}
			return &winner, nil
		}
		return nil, fmt.Errorf("failed to create cart order: %w", err)
	}
	return &order, nil
}

func isDuplicateKeyErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry")
}

// AddItem menambahkan satu line item baru ke keranjang sesi. Add berulang
// untuk menu yang sama membuat baris baru, tidak pernah digabung. Harga
// diambil dari katalog saat ini dan dibekukan di baris.
func (s *CartService) AddItem(sessionID, actingParticipantID, menuID uint,
	quantity int, customizations []string, notes string) (*models.OrderItem, error) {

	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var menu models.Menu
	if err := s.db.First(&menu, menuID).Error; err != nil {
		return nil, fmt.Errorf("failed to find menu %d: %w", menuID, err)
	}

	order, err := s.GetOrCreateCartOrder(sessionID, actingParticipantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	item := models.OrderItem{
		OrderID:              order.ID,
		MenuID:               menu.ID,
		Quantity:             quantity,
		UnitPrice:            menu.Price,
		TotalPrice:           menu.Price * float64(quantity),
		Customizations:       models.Selections(customizations),
		Notes:                notes,
		AddedByParticipantID: actingParticipantID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		if err := recordChange(tx, "order_items", item.ID, sessionID,
			models.ActionInsert, &actingParticipantID, nil, item); err != nil {
			return err
		}
		return s.refreshSubtotal(tx, order.ID)
	})
	if err != nil {
		utils.ErrorLogger.Printf("AddItem failed (session=%d participant=%d menu=%d): %v",
			sessionID, actingParticipantID, menuID, err)
		return nil, fmt.Errorf("failed to add item: %w", err)
	}
	return &item, nil
}

// UpdateQuantity mengubah jumlah satu baris. Jumlah <= 0 didefinisikan sama
// dengan RemoveItem. total_price dihitung ulang dari unit_price yang sudah
// tersimpan, bukan dari katalog.
func (s *CartService) UpdateQuantity(itemID uint, newQuantity int, actingParticipantID *uint) error {
	if newQuantity <= 0 {
		return s.RemoveItem(itemID, actingParticipantID)
	}

	var item models.OrderItem
	if err := s.db.Joins("Order").
		Where("order_items.id = ?", itemID).
		First(&item).Error; err != nil {
		return fmt.Errorf("failed to find order item %d: %w", itemID, err)
	}

	old := item
	now := s.now()
	item.Quantity = newQuantity
	item.TotalPrice = item.UnitPrice * float64(newQuantity)
	item.UpdatedAt = now

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Hanya kolom kuantitas yang disentuh; edit notes yang sedang
		// balapan tidak ikut tertimpa.
		if err := tx.Model(&models.OrderItem{}).Where("id = ?", itemID).
			Updates(map[string]interface{}{
				"quantity":    item.Quantity,
				"total_price": item.TotalPrice,
				"updated_at":  now,
			}).Error; err != nil {
			return err
		}
		if err := recordChange(tx, "order_items", itemID, item.Order.SessionID,
			models.ActionUpdate, actingParticipantID, old, item); err != nil {
			return err
		}
		return s.refreshSubtotal(tx, item.OrderID)
	})
	if err != nil {
		utils.ErrorLogger.Printf("UpdateQuantity failed (item=%d): %v", itemID, err)
		return fmt.Errorf("failed to update quantity: %w", err)
	}
	return nil
}

// RemoveItem menghapus satu baris. Baris yang sudah tidak ada (dihapus
// participant lain yang balapan) dianggap sukses.
func (s *CartService) RemoveItem(itemID uint, actingParticipantID *uint) error {
	var item models.OrderItem
	if err := s.db.Joins("Order").
		Where("order_items.id = ?", itemID).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("failed to find order item %d: %w", itemID, err)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.OrderItem{}, itemID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Sudah keburu dihapus pihak lain
			return nil
		}
		if err := recordChange(tx, "order_items", itemID, item.Order.SessionID,
			models.ActionDelete, actingParticipantID, item, nil); err != nil {
			return err
		}
		return s.refreshSubtotal(tx, item.OrderID)
	})
	if err != nil {
		utils.ErrorLogger.Printf("RemoveItem failed (item=%d): %v", itemID, err)
		return fmt.Errorf("failed to remove item: %w", err)
	}
	return nil
}

// ClearCart menghapus semua baris sebuah order dalam satu bulk delete.
// Idempoten terhadap keranjang yang sudah kosong.
func (s *CartService) ClearCart(orderID uint, actingParticipantID *uint) error {
	var order models.Order
	if err := s.db.First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("failed to find order %d: %w", orderID, err)
	}

	var items []models.OrderItem
	if err := s.db.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", orderID).
			Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		for _, item := range items {
			if err := recordChange(tx, "order_items", item.ID, order.SessionID,
				models.ActionDelete, actingParticipantID, item, nil); err != nil {
				return err
			}
		}
		return s.refreshSubtotal(tx, orderID)
	})
	if err != nil {
		utils.ErrorLogger.Printf("ClearCart failed (order=%d): %v", orderID, err)
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// SubmitOrder memindahkan order dari 'cart' ke 'submitted'. Setelah ini,
// AddItem berikutnya di sesi yang sama mengalokasikan cart baru; order yang
// sudah disubmit adalah snapshot, bukan wadah yang terus dimutasi.
func (s *CartService) SubmitOrder(orderID uint, actingParticipantID *uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.First(&order, orderID).Error; err != nil {
		return nil, fmt.Errorf("failed to find order %d: %w", orderID, err)
	}
	if order.Status != models.OrderStatusCart {
		return nil, ErrOrderNotCart
	}

	now := s.now()
	order.Status = models.OrderStatusSubmitted
	order.SubmittedAt = &now
	order.UpdatedAt = now

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Order{}).Where("id = ?", orderID).
			Updates(map[string]interface{}{
				"status":       order.Status,
				"submitted_at": now,
				"updated_at":   now,
			}).Error; err != nil {
			return err
		}
		return recordChange(tx, "orders", orderID, order.SessionID,
			models.ActionUpdate, actingParticipantID, nil, order)
	})
	if err != nil {
		utils.ErrorLogger.Printf("SubmitOrder failed (order=%d): %v", orderID, err)
		return nil, fmt.Errorf("failed to submit order: %w", err)
	}

	utils.InfoLogger.Printf("Order %d submitted for session %d", orderID, order.SessionID)
	return &order, nil
}

// CartSnapshot memuat order cart sesi lengkap dengan menu dan participant
// penambahnya; inilah query full-reload yang dipakai klien. Sesi tanpa cart
// menghasilkan snapshot kosong.
func (s *CartService) CartSnapshot(sessionID uint) (*models.Order, error) {
	var order models.Order
	err := s.db.
		Preload("OrderItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_items.id ASC")
		}).
		Preload("OrderItems.Menu").
		Preload("OrderItems.AddedBy").
		Where("session_id = ? AND status = ?", sessionID, models.OrderStatusCart).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.Order{
				SessionID:  sessionID,
				Status:     models.OrderStatusCart,
				OrderItems: []models.OrderItem{},
			}, nil
		}
		return nil, fmt.Errorf("failed to load cart snapshot: %w", err)
	}
	return &order, nil
}

// Total menjumlahkan total_price semua baris, dibulatkan per sen. Selalu
// diturunkan dari daftar baris; subtotal denormalisasi di order tidak pernah
// dipercaya.
func Total(lines []models.OrderItem) float64 {
	var cents int64
	for _, line := range lines {
		cents += int64(math.Round(line.TotalPrice * 100))
	}
	return float64(cents) / 100
}

// refreshSubtotal menjaga subtotal denormalisasi tetap kira-kira benar dan
// membarukan updated_at order sebagai sinyal aktivitas sesi.
func (s *CartService) refreshSubtotal(tx *gorm.DB, orderID uint) error {
	var lines []models.OrderItem
	if err := tx.Where("order_id = ?", orderID).Find(&lines).Error; err != nil {
		return err
	}
	return tx.Model(&models.Order{}).Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"subtotal":   Total(lines),
			"updated_at": s.now(),
		}).Error
}
