// Package accounts owns the connectivity state machine for linked Drive
// accounts: active → revoked on terminal auth failure, active → error on
// transient trouble, and cascade cleanup on unlink. Recovery out of revoked
// only happens through a fresh OAuth linking flow.
package accounts

import (
	"fmt"
	"log"
	"time"

	"github.com/skyvault/drivedash/internal/db/models"
	"gorm.io/gorm"
)

// MarkRevoked transitions the account to revoked and clears both tokens so
// future syncs short-circuit instead of re-attempting a doomed exchange.
func MarkRevoked(gdb *gorm.DB, acct *models.LinkedAccount) error {
	err := gdb.Model(&models.LinkedAccount{}).Where("id = ?", acct.ID).Updates(map[string]interface{}{
		"connection_status": models.StatusRevoked,
		"access_token":      "",
		"refresh_token":     "",
	}).Error
	if err != nil {
		return fmt.Errorf("mark revoked %s: %w", acct.ID, err)
	}
	acct.ConnectionStatus = models.StatusRevoked
	acct.AccessToken = ""
	acct.RefreshToken = ""
	log.Printf("🔒 Account %s revoked; re-linking required", acct.Email)
	return nil
}

// MarkError records a non-auth failure. Tokens are kept: the account may
// recover on the next sync attempt.
func MarkError(gdb *gorm.DB, acct *models.LinkedAccount, cause error) error {
	err := gdb.Model(&models.LinkedAccount{}).Where("id = ?", acct.ID).
		Update("connection_status", models.StatusError).Error
	if err != nil {
		return fmt.Errorf("mark error %s: %w", acct.ID, err)
	}
	acct.ConnectionStatus = models.StatusError
	log.Printf("⚠️ Account %s sync failed: %v", acct.Email, cause)
	return nil
}

// MarkSynced records a successful full sync, restoring active status for
// accounts that were in the transient error state.
func MarkSynced(gdb *gorm.DB, acct *models.LinkedAccount) error {
	now := time.Now()
	err := gdb.Model(&models.LinkedAccount{}).Where("id = ?", acct.ID).Updates(map[string]interface{}{
		"connection_status": models.StatusActive,
		"last_sync":         now,
	}).Error
	if err != nil {
		return fmt.Errorf("mark synced %s: %w", acct.ID, err)
	}
	acct.ConnectionStatus = models.StatusActive
	acct.LastSync = now
	return nil
}

// MarkDisconnected pauses an account on user request. Credentials are kept,
// so reconnecting is a status flip rather than a new OAuth flow.
func MarkDisconnected(gdb *gorm.DB, acct *models.LinkedAccount) error {
	err := gdb.Model(&models.LinkedAccount{}).Where("id = ?", acct.ID).
		Update("connection_status", models.StatusDisconnected).Error
	if err != nil {
		return fmt.Errorf("mark disconnected %s: %w", acct.ID, err)
	}
	acct.ConnectionStatus = models.StatusDisconnected
	log.Printf("⏸️ Account %s disconnected by user", acct.Email)
	return nil
}

// Reconnect resumes a user-disconnected account. Revoked accounts cannot be
// resumed this way; they need a fresh OAuth grant.
func Reconnect(gdb *gorm.DB, acct *models.LinkedAccount) error {
	if acct.ConnectionStatus != models.StatusDisconnected {
		return fmt.Errorf("account %s is %s, not disconnected", acct.ID, acct.ConnectionStatus)
	}
	err := gdb.Model(&models.LinkedAccount{}).Where("id = ?", acct.ID).
		Update("connection_status", models.StatusActive).Error
	if err != nil {
		return fmt.Errorf("reconnect %s: %w", acct.ID, err)
	}
	acct.ConnectionStatus = models.StatusActive
	return nil
}

// ListActive returns the user's accounts eligible for automatic sync.
// Revoked and errored accounts are excluded; errored ones are retried only
// when explicitly synced by id.
func ListActive(gdb *gorm.DB, userID string) ([]models.LinkedAccount, error) {
	var accts []models.LinkedAccount
	err := gdb.Where("user_id = ? AND connection_status = ?", userID, models.StatusActive).
		Order("created_at").Find(&accts).Error
	return accts, err
}

// Unlink removes the account and cascades deletion of its mirrored files.
func Unlink(gdb *gorm.DB, accountID string) error {
	return gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", accountID).Delete(&models.MirroredFile{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", accountID).Delete(&models.LinkedAccount{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
