package database

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/config"
	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/models"
)

func Connect(cfg *config.Config, logger zerolog.Logger) *gorm.DB {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	logger.Info().Str("db", cfg.DBName).Msg("database connected")
	return db
}

func AutoMigrate(db *gorm.DB, logger zerolog.Logger) {
	// Earlier deployments stored heroes without the carousel flag;
	// default existing rows to visible before AutoMigrate adds NOT NULL.
	db.Exec(`DO $$
	BEGIN
		IF EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'heroes')
		   AND NOT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name = 'heroes' AND column_name = 'carousel')
		THEN
			ALTER TABLE heroes ADD COLUMN carousel boolean NOT NULL DEFAULT true;
		END IF;
	END $$;`)

	// Session scoping arrived after the first event; old rows stay global.
	db.Exec(`DO $$
	BEGIN
		IF EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'hero_stats')
		   AND NOT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name = 'hero_stats' AND column_name = 'session_id')
		THEN
			ALTER TABLE hero_stats ADD COLUMN session_id bigint;
		END IF;
	END $$;`)

	err := db.AutoMigrate(
		&models.Admin{},
		&models.Session{},
		&models.Hero{},
		&models.HeroStat{},
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Msg("database migrated")
}
