package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

// schema creates every table the service reads or writes.  Statements are
// idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		k VARCHAR(64) NOT NULL PRIMARY KEY,
		v VARCHAR(255) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS advertisers (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		UNIQUE KEY uq_advertisers_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		reservation_no VARCHAR(64) NULL,
		advertiser_name VARCHAR(255) NOT NULL,
		plan_title VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		is_confirmed TINYINT(1) NOT NULL DEFAULT 0,
		payload_json LONGTEXT NOT NULL,
		UNIQUE KEY uq_reservations_no (reservation_no),
		KEY idx_reservations_plan (plan_title, is_confirmed),
		KEY idx_reservations_advertiser (advertiser_name, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS channels (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(128) NOT NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		UNIQUE KEY uq_channels_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS channel_prices (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		channel_id BIGINT NOT NULL,
		advertiser_name VARCHAR(255) NOT NULL DEFAULT '',
		year SMALLINT NOT NULL,
		month TINYINT NOT NULL,
		price_dt DECIMAL(12,4) NOT NULL DEFAULT 0,
		price_odt DECIMAL(12,4) NOT NULL DEFAULT 0,
		UNIQUE KEY uq_channel_prices (channel_id, advertiser_name, year, month),
		CONSTRAINT fk_channel_prices_channel FOREIGN KEY (channel_id) REFERENCES channels (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS channel_access (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		channel_key VARCHAR(128) NOT NULL,
		hour_window VARCHAR(16) NOT NULL,
		ratio DOUBLE NULL,
		recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_channel_access (channel_key, hour_window, recorded_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		full_name VARCHAR(255) NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(16) NOT NULL DEFAULT 'VIEWER',
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// DefaultChannels are inserted on an empty channels table.
var DefaultChannels = []string{"TRT FM", "RADIOSCOPE", "POWER FM"}

// Migrate creates missing tables, seeds the default channels and makes
// sure the reservation counter exists.  seqStart is the first number a
// fresh database hands out; an existing counter is left untouched.
func Migrate(ctx context.Context, db *sql.DB, seqStart int64) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	for _, name := range DefaultChannels {
		if _, err := db.ExecContext(ctx, "INSERT IGNORE INTO channels (name, is_active) VALUES (?, 1)", name); err != nil {
			return fmt.Errorf("seed channel %s: %w", name, err)
		}
	}
	if _, err := db.ExecContext(ctx,
		"INSERT IGNORE INTO meta (k, v) VALUES ('reservation_seq', ?)", strconv.FormatInt(seqStart, 10)); err != nil {
		return fmt.Errorf("seed reservation_seq: %w", err)
	}
	return nil
}
