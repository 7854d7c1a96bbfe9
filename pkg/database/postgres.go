package database

import (
	"fmt"
	"log/slog"
	"time"

	"solaralert/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Debug    bool
}

func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func Connect(config Config, log *slog.Logger) (*gorm.DB, error) {
	logMode := logger.Warn
	if config.Debug {
		logMode = logger.Info
	}

	db, err := gorm.Open(postgres.Open(config.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("database connected", "host", config.Host, "db", config.DBName)
	return db, nil
}

func Migrate(db *gorm.DB, log *slog.Logger) error {
	err := db.AutoMigrate(
		&models.Subscriber{},
		&models.Alert{},
		&models.AlertDelivery{},
		&models.FeedSnapshot{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Info("database migration completed")
	return nil
}

func createIndexes(db *gorm.DB) error {
	statements := []string{
		"CREATE INDEX IF NOT EXISTS idx_alerts_sent_at ON alerts(sent_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_alert_deliveries_phone ON alert_deliveries(phone_number, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_subscribers_subscribed ON subscribers(id) WHERE subscribed",
		"CREATE INDEX IF NOT EXISTS idx_feed_snapshots_source_fetched ON feed_snapshots(source, fetched_at DESC)",
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
