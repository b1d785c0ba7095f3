package devapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/nilcar/leads-console/internal/ingest"
	"github.com/nilcar/leads-console/internal/store"
	"github.com/nilcar/leads-console/internal/validate"
)

// SeedOptions controls demo data creation.
type SeedOptions struct {
	AdminPassword string
	UserPassword  string
	Leads         int
	RandSeed      int64
}

// SeedResult reports what Seed created.
type SeedResult struct {
	UsersCreated int
	LeadsCreated int
}

// DefaultSeedPassword satisfies every password rule.
const DefaultSeedPassword = "Senha@123"

// Seed creates the "admin" and "user" accounts when missing and adds generated leads.
func Seed(ctx context.Context, st *store.Store, opts SeedOptions) (SeedResult, error) {
	var res SeedResult
	if opts.AdminPassword == "" {
		opts.AdminPassword = DefaultSeedPassword
	}
	if opts.UserPassword == "" {
		opts.UserPassword = DefaultSeedPassword
	}

	accounts := []struct {
		username, email, role, password string
	}{
		{"admin", "admin@leads.local", validate.RoleAdmin, opts.AdminPassword},
		{"user", "user@leads.local", validate.RoleUser, opts.UserPassword},
	}
	for _, a := range accounts {
		_, err := st.FindUserByIdentifier(ctx, a.username)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return res, err
		}
		hash, err := HashPassword(a.password)
		if err != nil {
			return res, fmt.Errorf("hash password for %s: %w", a.username, err)
		}
		if _, err := st.CreateUser(ctx, store.User{
			Username:     a.username,
			Email:        a.email,
			Role:         a.role,
			PasswordHash: hash,
		}); err != nil {
			return res, err
		}
		res.UsersCreated++
	}

	if opts.Leads > 0 {
		gen := ingest.NewGenerator(opts.RandSeed)
		for _, l := range gen.Leads(opts.Leads) {
			if _, err := st.SaveLead(ctx, l); err != nil {
				return res, err
			}
			res.LeadsCreated++
		}
	}
	return res, nil
}
