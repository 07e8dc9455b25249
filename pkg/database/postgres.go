package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/verve-studios/scheduler-api/pkg/config"
)

const (
	pingAttempts = 5
	pingBackoff  = 2 * time.Second
)

// NewPostgres returns a configured PostgreSQL client. The initial ping is
// retried because the API and worker containers usually start before the
// database finishes accepting connections.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=5",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	var pingErr error
	for attempt := 0; attempt < pingAttempts; attempt++ {
		if pingErr = db.Ping(); pingErr == nil {
			return db, nil
		}
		time.Sleep(pingBackoff)
	}
	_ = db.Close()
	return nil, fmt.Errorf("postgres unreachable after %d attempts: %w", pingAttempts, pingErr)
}
