package config

import (
	"context"

	"civichero-be/apperr"
	"civichero-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DemoPassword is shared by the seeded demo accounts.
const DemoPassword = "password"

// SeedStore is the account storage the seeder writes to.
type SeedStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	SetXP(ctx context.Context, id primitive.ObjectID, xp int) error
}

type SignUpper interface {
	SignUp(ctx context.Context, email, password, name string, typ models.ProfileType) (*models.User, error)
}

type demoAccount struct {
	Email string
	Name  string
	Type  models.ProfileType
	XP    int
}

var demoAccounts = []demoAccount{
	{Email: "citizen@example.com", Name: "John Doe", Type: models.Citizen},
	{Email: "ngo@example.com", Name: "Green Earth NGO", Type: models.NGO, XP: 100},
}

// SeedDemoUsers creates the demo citizen and NGO accounts. Accounts that
// already exist are left alone.
func SeedDemoUsers(ctx context.Context, users SeedStore, signer SignUpper, logger *zap.Logger) error {
	for _, acct := range demoAccounts {
		_, err := users.FindByEmail(ctx, acct.Email)
		if err == nil {
			logger.Info("demo account already exists", zap.String("email", acct.Email))
			continue
		}
		if !apperr.IsKind(err, apperr.KindNotFound) {
			return err
		}

		user, err := signer.SignUp(ctx, acct.Email, DemoPassword, acct.Name, acct.Type)
		if err != nil {
			return err
		}
		if acct.XP > 0 {
			if err := users.SetXP(ctx, user.ID, acct.XP); err != nil {
				return err
			}
		}
		logger.Info("demo account created", zap.String("email", acct.Email), zap.String("type", string(acct.Type)))
	}
	return nil
}
