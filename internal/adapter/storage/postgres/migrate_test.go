package postgres

import (
	"io"
	"testing"

	"wallet-settlement/migrations"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	src, err := iofs.New(migrations.FS, ".")
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	up, _, err := src.ReadUp(first)
	require.NoError(t, err)
	body, err := io.ReadAll(up)
	require.NoError(t, err)
	_ = up.Close()

	sql := string(body)
	for _, table := range []string{"wallets", "ledger_transactions", "order_settlements", "fulfillment_requests", "orders", "audit_logs", "notifications"} {
		assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, sql, "CHECK (balance >= 0)")
	assert.Contains(t, sql, "reference_id           TEXT NOT NULL UNIQUE")

	down, _, err := src.ReadDown(first)
	require.NoError(t, err)
	_ = down.Close()
}
