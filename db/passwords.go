package db

import (
	"context"
	"fmt"
	"time"

	"workscope/models"
)

// StorePasswordHash stores a password hash for a user
func StorePasswordHash(ctx context.Context, s Store, userID, passwordHash string) error {
	err := s.Set(ctx, models.CollectionPasswords, userID, map[string]interface{}{
		"user_id":       userID,
		"password_hash": passwordHash,
		"updated_at":    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to store password hash: %w", err)
	}
	return nil
}

// GetPasswordHash retrieves a password hash for a user
func GetPasswordHash(ctx context.Context, s Store, userID string) (string, error) {
	rec, err := s.GetByID(ctx, models.CollectionPasswords, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get password hash: %w", err)
	}

	if hash, ok := rec.Data["password_hash"].(string); ok {
		return hash, nil
	}

	return "", fmt.Errorf("password hash not found for user: %s", userID)
}
