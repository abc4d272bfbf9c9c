package database

import (
	"strings"

	"github.com/tablemate/tablemate/utils"
	"gorm.io/gorm"
)

// EnsureConstraints memasang index unik parsial yang menjamin paling banyak
// satu order berstatus 'cart' per sesi. Dua klien yang sama-sama melihat
// "belum ada cart" akan tabrakan di index ini, dan engine memulihkannya
// dengan query ulang (lihat services.CartService).
func EnsureConstraints(db *gorm.DB) error {
	var stmt string
	switch db.Dialector.Name() {
	case "sqlite":
		stmt = `CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_single_cart
			ON orders(session_id) WHERE status = 'cart'`
	case "mysql":
		// MySQL tidak punya partial index; functional index atas CASE
		// menghasilkan NULL untuk status lain sehingga tidak bentrok.
		stmt = `CREATE UNIQUE INDEX idx_orders_single_cart
			ON orders ((CASE WHEN status = 'cart' THEN session_id END))`
	default:
		stmt = `CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_single_cart
			ON orders(session_id) WHERE status = 'cart'`
	}

	if err := db.Exec(stmt).Error; err != nil {
		if isIndexExistsErr(err) {
			return nil
		}
		utils.ErrorLogger.Printf("Error creating single-cart index: %v", err)
		return err
	}

	utils.InfoLogger.Println("Single-cart unique index ensured")
	return nil
}

func isIndexExistsErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Duplicate key name") ||
		strings.Contains(msg, "already exists")
}
