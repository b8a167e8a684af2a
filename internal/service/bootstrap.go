package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/radio-slot-reservation/internal/model"
	"github.com/iliyamo/radio-slot-reservation/internal/repository"
)

// PlannerAccounts creates and looks up planner accounts.
// *repository.UserRepo satisfies it.
type PlannerAccounts interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, email, fullName, password, role string, cost int) (uint64, error)
}

// EnsurePlanner creates a PLANNER account for email unless one exists.
// A blank email is a no-op.  It reports whether an account was created.
func EnsurePlanner(ctx context.Context, users PlannerAccounts, email, name, password string, cost int, log logrus.FieldLogger) (bool, error) {
	if email == "" {
		return false, nil
	}
	_, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return false, fmt.Errorf("lookup planner: %w", err)
	}
	id, err := users.Create(ctx, email, name, password, model.RolePlanner, cost)
	if errors.Is(err, repository.ErrEmailExists) {
		// created concurrently by another instance
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create planner: %w", err)
	}
	log.WithFields(logrus.Fields{"user_id": id, "email": email}).Info("planner account created")
	return true, nil
}
