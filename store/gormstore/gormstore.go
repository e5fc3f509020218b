// Package gormstore is a gorm-backed [store.Store]. Sessions live in a JSON
// text column on the users row and are swapped with a version check, so a
// single-row UPDATE is the only atomicity it needs from the database.
package gormstore

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/MrEthical07/eduAuth/session"
	"github.com/MrEthical07/eduAuth/store"
)

type sessionList []session.Descriptor

func (l sessionList) Value() (driver.Value, error) {
	if l == nil {
		l = sessionList{}
	}
	data, err := json.Marshal([]session.Descriptor(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *sessionList) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = sessionList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported sessions column type %T", src)
	}
	if len(data) == 0 {
		*l = sessionList{}
		return nil
	}
	return json.Unmarshal(data, (*[]session.Descriptor)(l))
}

type userRow struct {
	ID               string      `gorm:"column:id;primaryKey"`
	Name             string      `gorm:"column:name"`
	Email            string      `gorm:"column:email"`
	PasswordHash     string      `gorm:"column:password_hash"`
	Role             string      `gorm:"column:role"`
	TwoFactorEnabled bool        `gorm:"column:two_factor_enabled"`
	Sessions         sessionList `gorm:"column:sessions"`
	SessionsVersion  uint64      `gorm:"column:sessions_version"`
	CreatedAt        time.Time   `gorm:"column:created_at"`
	UpdatedAt        time.Time   `gorm:"column:updated_at"`
}

func (userRow) TableName() string { return "users" }

// Store implements [store.Store] on a *gorm.DB opened with TranslateError.
type Store struct {
	db *gorm.DB
}

// New wraps db. Run [Migrate] before first use.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateUser(ctx context.Context, user *store.User) error {
	row := toRow(user)
	row.Email = store.NormalizeEmail(row.Email)

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.first(ctx, "email = ?", store.NormalizeEmail(email))
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	return s.update(ctx, id, map[string]interface{}{"password_hash": passwordHash})
}

func (s *Store) SetTwoFactorEnabled(ctx context.Context, id string, enabled bool) error {
	return s.update(ctx, id, map[string]interface{}{"two_factor_enabled": enabled})
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&userRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) LoadSessions(ctx context.Context, userID string) ([]session.Descriptor, uint64, error) {
	var row userRow
	err := s.db.WithContext(ctx).
		Select("id", "sessions", "sessions_version").
		Where("id = ?", userID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, store.ErrNotFound
		}
		return nil, 0, err
	}
	return []session.Descriptor(row.Sessions), row.SessionsVersion, nil
}

func (s *Store) SaveSessions(ctx context.Context, userID string, expected uint64, sessions []session.Descriptor) error {
	res := s.db.WithContext(ctx).
		Model(&userRow{}).
		Where("id = ? AND sessions_version = ?", userID, expected).
		Updates(map[string]interface{}{
			"sessions":         sessionList(sessions),
			"sessions_version": expected + 1,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return store.ErrNotFound
	}
	return session.ErrVersionConflict
}

func (s *Store) first(ctx context.Context, query string, arg interface{}) (*store.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where(query, arg).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return fromRow(&row), nil
}

func (s *Store) update(ctx context.Context, id string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Drivers without an error translator.
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

func toRow(u *store.User) userRow {
	now := time.Now().UTC()
	created := u.CreatedAt
	if created.IsZero() {
		created = now
	}
	role := u.Role
	if role == "" {
		role = store.RoleStudent
	}
	return userRow{
		ID:               u.ID,
		Name:             u.Name,
		Email:            u.Email,
		PasswordHash:     u.PasswordHash,
		Role:             string(role),
		TwoFactorEnabled: u.TwoFactorEnabled,
		Sessions:         sessionList(u.Sessions),
		SessionsVersion:  u.SessionsVersion,
		CreatedAt:        created,
		UpdatedAt:        created,
	}
}

func fromRow(r *userRow) *store.User {
	return &store.User{
		ID:               r.ID,
		Name:             r.Name,
		Email:            r.Email,
		PasswordHash:     r.PasswordHash,
		Role:             store.Role(r.Role),
		TwoFactorEnabled: r.TwoFactorEnabled,
		Sessions:         []session.Descriptor(r.Sessions),
		SessionsVersion:  r.SessionsVersion,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}
