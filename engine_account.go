package eduAuth

import (
	"context"
	"errors"
	"slices"

	"github.com/MrEthical07/eduAuth/session"
	"github.com/MrEthical07/eduAuth/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Register creates an identity, opens its first session and returns the
// token for it. A welcome mail is sent in the background when enabled; its
// failure does not affect the result.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*LoginResult, error) {
	name, err := validateName(req.Name)
	if err != nil {
		return nil, err
	}
	email := store.NormalizeEmail(req.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := e.validatePassword("password", req.Password); err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = e.config.Registration.DefaultRole
	}
	if !slices.Contains(e.config.Registration.AllowedRoles, role) {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", ErrRoleNotAllowed, func() map[string]string {
			return map[string]string{"role": string(role)}
		})
		return nil, ErrRoleNotAllowed
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		return nil, backendError("hash password", err)
	}

	now := e.now().UTC()
	u := &store.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", ErrDuplicateEmail, nil)
			return nil, ErrDuplicateEmail
		}
		return nil, backendError("create user", err)
	}

	res, err := e.startSession(ctx, u)
	if err != nil {
		// Drop the half-registered account so the address can be retried.
		if derr := e.users.DeleteUser(context.WithoutCancel(ctx), u.ID); derr != nil {
			e.logger.Error("rollback registration failed", zap.String("user_id", u.ID), zap.Error(derr))
		}
		return nil, err
	}

	if e.config.Registration.SendWelcome {
		e.sendWelcome(ctx, u)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, u.ID, res.Session.ID, nil, func() map[string]string {
		return map[string]string{"role": string(role)}
	})
	return res, nil
}

func (e *Engine) sendWelcome(ctx context.Context, u *store.User) {
	msg := e.templates.Welcome(u.Email, u.Name)
	ctx = context.WithoutCancel(ctx)

	e.background.Add(1)
	go func() {
		defer e.background.Done()
		if err := e.send(ctx, msg); err != nil {
			e.logger.Warn("welcome mail failed",
				zap.String("user_id", u.ID),
				zap.Error(err),
			)
		}
	}()
}

// Profile returns the identity and its stored sessions. Sessions are listed
// as stored; nothing is pruned or refreshed.
func (e *Engine) Profile(ctx context.Context, userID string) (*Profile, error) {
	u, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Profile{
		Identity:       identityOf(u),
		ActiveSessions: append([]session.Descriptor{}, u.Sessions...),
	}, nil
}

// ChangePassword replaces the password after checking the current one.
// Existing sessions stay open.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" {
		return &ValidationError{Field: "oldPassword", Reason: "is required"}
	}
	if err := e.validatePassword("newPassword", newPassword); err != nil {
		return err
	}

	u, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := e.passwordHash.Verify(oldPassword, u.PasswordHash)
	if err != nil {
		return backendError("verify password", err)
	}
	if !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", ErrPasswordMismatch, nil)
		return ErrPasswordMismatch
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return backendError("hash password", err)
	}
	if err := e.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return backendError("update password", err)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, userID, "", nil, nil)
	return nil
}

// DeleteAccount removes the identity with its sessions and any pending
// code or reset token.
func (e *Engine) DeleteAccount(ctx context.Context, userID string) error {
	if err := e.users.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return backendError("delete user", err)
	}

	cleanup := context.WithoutCancel(ctx)
	if _, err := e.twoFactor.Forget(cleanup, userID); err != nil {
		e.logger.Warn("discard pending code failed", zap.String("user_id", userID), zap.Error(err))
	}
	if e.resets != nil {
		if _, err := e.resets.Forget(cleanup, userID); err != nil {
			e.logger.Warn("discard reset token failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, auditEventAccountDeleted, true, userID, "", nil, nil)
	return nil
}

// SetTwoFactor turns emailed login codes on or off and returns the new
// setting. Turning them off discards a pending code.
func (e *Engine) SetTwoFactor(ctx context.Context, userID string, enabled bool) (bool, error) {
	if err := e.users.SetTwoFactorEnabled(ctx, userID, enabled); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, ErrUserNotFound
		}
		return false, backendError("set two-factor", err)
	}

	if !enabled {
		if _, err := e.twoFactor.Forget(context.WithoutCancel(ctx), userID); err != nil {
			e.logger.Warn("discard pending code failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	e.emitAudit(ctx, auditEventTwoFactorToggled, true, userID, "", nil, func() map[string]string {
		if enabled {
			return map[string]string{"enabled": "true"}
		}
		return map[string]string{"enabled": "false"}
	})
	return enabled, nil
}

func (e *Engine) loadUser(ctx context.Context, userID string) (*store.User, error) {
	if userID == "" {
		return nil, ErrUserNotFound
	}
	u, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, backendError("load user", err)
	}
	return u, nil
}
