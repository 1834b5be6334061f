package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"memoryreel-backend/internal/models"
)

func (db *DB) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, email, name, google_id,
		       google_access_token, google_refresh_token, google_token_expiry,
		       created_at
		FROM users
		WHERE id = $1
	`

	user := &models.User{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.Name, &user.GoogleID,
		&user.GoogleAccessToken, &user.GoogleRefreshToken, &user.GoogleTokenExpiry,
		&user.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// UpsertUser creates the user on first login and refreshes name/google_id and
// the Google tokens on subsequent logins, keyed by email. A login without a
// refresh token keeps the previously stored one.
func (db *DB) UpsertUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, name, google_id,
			google_access_token, google_refresh_token, google_token_expiry)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name,
		    google_id = EXCLUDED.google_id,
		    google_access_token = EXCLUDED.google_access_token,
		    google_refresh_token = COALESCE(EXCLUDED.google_refresh_token, users.google_refresh_token),
		    google_token_expiry = EXCLUDED.google_token_expiry
		RETURNING id, created_at
	`

	return db.QueryRowContext(
		ctx, query,
		user.ID, user.Email, user.Name, user.GoogleID,
		user.GoogleAccessToken, user.GoogleRefreshToken, user.GoogleTokenExpiry,
	).Scan(&user.ID, &user.CreatedAt)
}

// UpdateGoogleAccessToken persists a refreshed access token and its expiry.
func (db *DB) UpdateGoogleAccessToken(ctx context.Context, userID uuid.UUID, accessToken string, expiry time.Time) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET google_access_token = $1, google_token_expiry = $2 WHERE id = $3`,
		accessToken, expiry, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update google token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}
