package testutil

import (
	"context"
	"os"

	"github.com/mdnsystems/OmniCare-sub005/internal/migrate"
	"github.com/mdnsystems/OmniCare-sub005/migrations"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenDB abre conexão GORM a partir de DATABASE_URL. Se não houver, retorna nil.
func OpenDB(ctx context.Context) (*gorm.DB, string) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return nil, ""
	}
	db, err := gorm.Open(postgres.Open(url), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, url
	}
	sqlDB, err := db.DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		return nil, url
	}
	return db, url
}

func MustMigrate(ctx context.Context, db *gorm.DB) error {
	_, err := migrate.Run(ctx, db, migrations.FS, zerolog.Nop())
	return err
}
