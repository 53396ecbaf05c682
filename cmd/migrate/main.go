package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rempla/rempla-backend/internal/config"
	"github.com/rempla/rempla-backend/internal/domain"
	"github.com/rempla/rempla-backend/internal/migration"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "configs/config.local.yaml", "config file path")
	seed := flag.Bool("seed", false, "insert demo directory data and a conversation")
	verify := flag.Bool("verify", false, "report stored messages that fail schema validation")
	batchSize := flag.Int("batch-size", 1000, "verify batch size")
	verbose := flag.Bool("verbose", false, "verbose SQL logging")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logLevel := gormlogger.Warn
	if *verbose {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := migration.Run(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Schema up to date")

	if *seed {
		if err := migration.SeedDemo(db); err != nil {
			log.Fatalf("Seed failed: %v", err)
		}
		log.Println("Demo data seeded")
	}

	if *verify {
		checked, bad, err := verifyMessages(db, *batchSize)
		if err != nil {
			log.Fatalf("Verify failed: %v", err)
		}
		fmt.Printf("verified %d messages, %d malformed\n", checked, bad)
	}
}

// verifyMessages parses every stored message and prints the ones the feed would discard
func verifyMessages(db *gorm.DB, batchSize int) (checked, bad int, err error) {
	var batch []domain.MessageRecord
	result := db.Order("id").FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		for _, rec := range batch {
			checked++
			if _, err := domain.Parse(rec); err != nil {
				bad++
				fmt.Printf("  %s/%s: %v\n", rec.ConversationID, rec.ID, err)
			}
		}
		return nil
	})
	return checked, bad, result.Error
}
