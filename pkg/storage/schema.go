package storage

import (
	"context"
	"fmt"
)

// CreateSchema creates any missing tables. It is idempotent and runs
// at startup; there is no migration tooling beyond this.
func (db *DB) CreateSchema(ctx context.Context) error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.driver == "postgres" {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS churches (
			id %s,
			title VARCHAR(255) NOT NULL,
			google_maps_id VARCHAR(255) NOT NULL
		)`, serial),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS groups (
			id %s,
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL
		)`, serial),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
			id %s,
			username VARCHAR(30) NOT NULL UNIQUE,
			real_name VARCHAR(255) NOT NULL,
			display_name VARCHAR(255) NOT NULL,
			image CHAR(64) REFERENCES uploaded_files(id) ON DELETE SET NULL,
			position VARCHAR(255) NOT NULL,
			role VARCHAR(255) NOT NULL,
			password_hash CHAR(60) NOT NULL,
			auth_token VARCHAR(64) UNIQUE
		)`, serial),
		`CREATE TABLE IF NOT EXISTS uploaded_files (
			id CHAR(64) PRIMARY KEY,
			title VARCHAR(255),
			mime_type VARCHAR(255),
			uploaded_at VARCHAR(25) NOT NULL,
			first_uploader BIGINT REFERENCES users(id) ON DELETE SET NULL
		)`,
		`CREATE TABLE IF NOT EXISTS group_members (
			group_id BIGINT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			PRIMARY KEY (group_id, user_id)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS church_service_dates (
			id %s,
			date VARCHAR(25) NOT NULL,
			church BIGINT NOT NULL REFERENCES churches(id),
			description TEXT NOT NULL
		)`, serial),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS posts (
			id %s,
			slug VARCHAR(50) NOT NULL UNIQUE,
			title VARCHAR(255) NOT NULL,
			group_id BIGINT REFERENCES groups(id) ON DELETE CASCADE,
			published_at VARCHAR(25),
			relevant_until VARCHAR(25),
			excerpt VARCHAR(255) NOT NULL,
			content TEXT NOT NULL,
			author BIGINT REFERENCES users(id) ON DELETE SET NULL
		)`, serial),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS events (
			id %s,
			title VARCHAR(255) NOT NULL,
			creator BIGINT REFERENCES users(id) ON DELETE SET NULL,
			color VARCHAR(255) NOT NULL,
			description TEXT NOT NULL,
			date VARCHAR(25) NOT NULL,
			end_date VARCHAR(25),
			related_post BIGINT REFERENCES posts(id) ON DELETE SET NULL
		)`, serial),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS videos (
			id %s,
			title VARCHAR(255) NOT NULL,
			published_at VARCHAR(25),
			youtube_video_id VARCHAR(20) NOT NULL
		)`, serial),
		`CREATE TABLE IF NOT EXISTS contents (
			id VARCHAR(255) PRIMARY KEY,
			content TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema bootstrap: %w", err)
		}
	}
	return nil
}
