package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// ReadDB wraps a raw database/sql connection used by the aggregate read
// model (backtest status summary, 3D monthly surface). The write path goes
// through GORM; these queries are plain SQL against the same database.
type ReadDB struct {
	conn *sql.DB
}

// ReadConfig holds read-model connection configuration
type ReadConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// NewReadConnection creates a new read-model database connection
func NewReadConnection(cfg ReadConfig) (*ReadDB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName,
	)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Aggregate queries are few but heavy; keep the pool small
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)
	conn.SetConnMaxIdleTime(2 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ Read-model database connection established")

	return &ReadDB{conn: conn}, nil
}

// Close closes the database connection
func (db *ReadDB) Close() error {
	if db.conn != nil {
		log.Println("📡 Closing read-model database connection...")
		return db.conn.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (db *ReadDB) Ping() error {
	return db.conn.Ping()
}

// Conn returns the underlying sql.DB connection
func (db *ReadDB) Conn() *sql.DB {
	return db.conn
}
