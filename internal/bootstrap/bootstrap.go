// Package bootstrap seeds a fresh ledger with the admin user and default
// categories.
package bootstrap

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"budgetapp/internal/core"
	"budgetapp/internal/ledger"
)

//go:embed defaults.yaml
var defaultSeed []byte

type Options struct {
	AdminEmail    string
	AdminPassword string
	// SeedFile replaces the embedded category list when set.
	SeedFile string
}

// Seed is the category list, grouped by type.
type Seed struct {
	Income  []string `yaml:"income"`
	Expense []string `yaml:"expense"`
}

type Store interface {
	ledger.UserStore
	ledger.CategoryStore
}

// LoadSeed reads path, or the embedded defaults when path is empty.
func LoadSeed(path string) (Seed, error) {
	data := defaultSeed
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Seed{}, fmt.Errorf("read seed file: %w", err)
		}
		data = b
	}
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	return s, nil
}

// EnsureDefaults creates the admin user when missing and the seed categories
// when the category table is empty. It returns the admin user. Running it
// again changes nothing.
func EnsureDefaults(ctx context.Context, store Store, opts Options) (core.User, error) {
	admin, err := ensureAdmin(ctx, store, opts)
	if err != nil {
		return core.User{}, err
	}

	cats, err := store.CategoriesAll(ctx)
	if err != nil {
		return core.User{}, fmt.Errorf("list categories: %w", err)
	}
	if len(cats) > 0 {
		return admin, nil
	}

	seed, err := LoadSeed(opts.SeedFile)
	if err != nil {
		return core.User{}, err
	}
	created := 0
	for _, group := range []struct {
		typ   core.CategoryType
		names []string
	}{{core.Income, seed.Income}, {core.Expense, seed.Expense}} {
		for _, name := range group.names {
			_, err := store.CreateCategory(ctx, core.Category{Name: name, Type: group.typ})
			if core.IsConflict(err) {
				continue
			}
			if err != nil {
				return core.User{}, fmt.Errorf("seed category %q: %w", name, err)
			}
			created++
		}
	}
	slog.InfoContext(ctx, "Seeded default categories", "count", created)
	return admin, nil
}

func ensureAdmin(ctx context.Context, store Store, opts Options) (core.User, error) {
	u, err := store.FindUserByEmail(ctx, opts.AdminEmail)
	if err == nil {
		return u, nil
	}
	if !core.IsNotFound(err) {
		return core.User{}, fmt.Errorf("find admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(opts.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash admin password: %w", err)
	}
	u, err = store.CreateUser(ctx, core.User{Email: opts.AdminEmail, PasswordHash: string(hash), IsAdmin: true})
	if err != nil {
		return core.User{}, fmt.Errorf("create admin: %w", err)
	}
	slog.InfoContext(ctx, "Created admin user", "email", u.Email, "id", u.ID)
	return u, nil
}
