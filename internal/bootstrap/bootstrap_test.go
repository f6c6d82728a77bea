package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"budgetapp/internal/core"
	"budgetapp/internal/ledger/memory"
)

func TestEnsureDefaults_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	opts := Options{AdminEmail: "admin@example.com", AdminPassword: "secret"}

	admin, err := EnsureDefaults(ctx, store, opts)
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("secret")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("wrong")))

	cats, err := store.CategoriesAll(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 11)

	again, err := EnsureDefaults(ctx, store, opts)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
	cats, err = store.CategoriesAll(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 11)
}

func TestEnsureDefaults_SkipsWhenCategoriesExist(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	_, err := store.CreateCategory(ctx, core.Category{Name: "Custom", Type: core.Expense})
	require.NoError(t, err)

	_, err = EnsureDefaults(ctx, store, Options{AdminEmail: "admin@example.com", AdminPassword: "x"})
	require.NoError(t, err)

	cats, err := store.CategoriesAll(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 1)
}

func TestLoadSeed(t *testing.T) {
	s, err := LoadSeed("")
	require.NoError(t, err)
	assert.Equal(t, []string{"Income", "Salary", "Bonus"}, s.Income)
	assert.Contains(t, s.Expense, "Groceries")

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("income: [Pay]\nexpense: [Food, Fun]\n"), 0o600))
	s, err = LoadSeed(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Pay"}, s.Income)
	assert.Equal(t, []string{"Food", "Fun"}, s.Expense)

	_, err = LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
