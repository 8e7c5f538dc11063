package services

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/assistpro/shopsync/internal/errors"
	"github.com/assistpro/shopsync/internal/logging"
	"github.com/assistpro/shopsync/internal/models"
)

const passwordHashField = "passwordHash"

// AuthorizeAction checks a local user's credentials, e.g. before an admin-only
// action. It works offline against the replicated users collection.
func (s *DataService) AuthorizeAction(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" {
		return nil, apperrors.New(apperrors.ErrInvalid, "username is required")
	}

	recs, err := s.store.FindByRef(ctx, models.EntityUsers, username)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		hash := rec.String(passwordHashField)
		if hash == "" {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
			continue
		}
		user, err := models.FromRecord[models.User](rec)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "corrupt user record", err)
		}
		user.PasswordHash = ""
		return &user, nil
	}

	logging.Info("[DataService] Authorization rejected", zap.String("username", username))
	return nil, apperrors.New(apperrors.ErrPermission, "invalid username or password")
}

// SetUserPassword stores a bcrypt hash of password for the user.
func (s *DataService) SetUserPassword(ctx context.Context, userID, password string) error {
	if password == "" {
		return apperrors.New(apperrors.ErrInvalid, "password is required")
	}
	rec, err := s.store.Get(ctx, models.EntityUsers, userID)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalid, "failed to hash password", err)
	}
	rec[passwordHashField] = string(hash)
	_, err = s.SaveEntity(ctx, models.EntityUsers, rec)
	return err
}
