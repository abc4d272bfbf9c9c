package services

import (
	"log"
	"os"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tablemate/tablemate/database"
	"github.com/tablemate/tablemate/models"
	"github.com/tablemate/tablemate/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	os.Exit(m.Run())
}

// setupTestDB -> SQLite in-memory + migrasi + index single-cart
func setupTestDB() *gorm.DB {
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
	if err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	if err := database.EnsureConstraints(db); err != nil {
		log.Fatalf("failed to ensure constraints: %v", err)
	}
	return db
}

// seedSession -> restoran + meja + sesi aktif siap pakai
func seedSession(db *gorm.DB) models.Session {
	restaurant := models.Restaurant{Name: "Warung Tes", Type: models.RestaurantTypeCasualDining}
	db.Create(&restaurant)

	table := models.Table{RestaurantID: restaurant.ID, TableNumber: "A1", Capacity: 4}
	db.Create(&table)

	session := models.Session{
		TableID:      table.ID,
		RestaurantID: restaurant.ID,
		Token:        utils.GenerateSessionToken(),
		Status:       models.SessionStatusActive,
		ExpiresAt:    time.Now().Add(90 * time.Minute),
	}
	db.Create(&session)
	return session
}

func seedMenu(db *gorm.DB, name string, price float64) models.Menu {
	var category models.MenuCategory
	db.FirstOrCreate(&category, models.MenuCategory{Name: "Makanan"})

	menu := models.Menu{
		CategoryID: category.ID,
		Name:       name,
		Price:      price,
		Available:  true,
	}
	db.Create(&menu)
	return menu
}
