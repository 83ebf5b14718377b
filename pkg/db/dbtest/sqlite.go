// Package dbtest opens in-memory SQLite databases carrying the service schema
// so repositories can be exercised without Postgres.
package dbtest

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  tier TEXT NOT NULL DEFAULT 'free',
  beta_access INTEGER NOT NULL DEFAULT 0,
  subscription_status TEXT,
  stripe_customer_id TEXT,
  stripe_subscription_id TEXT,
  stripe_account_id TEXT,
  wallet_address TEXT,
  schema_version INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE assets (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT,
  mime_type TEXT NOT NULL,
  size_bytes INTEGER NOT NULL,
  storage_url TEXT NOT NULL,
  storage_object TEXT,
  attributes TEXT,
  archival_status TEXT NOT NULL DEFAULT 'none',
  sale_status TEXT NOT NULL DEFAULT 'not_for_sale',
  schema_version INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE nfts (
  id TEXT PRIMARY KEY,
  asset_id TEXT NOT NULL,
  owner_id TEXT NOT NULL,
  status TEXT NOT NULL,
  origin TEXT NOT NULL DEFAULT 'platform',
  storage_tx_id TEXT,
  content_tx_id TEXT,
  metadata_uri TEXT,
  metadata TEXT,
  royalty_bps INTEGER NOT NULL DEFAULT 0,
  contract_address TEXT,
  token_id TEXT,
  ledger_tx_hash TEXT,
  gas_used INTEGER,
  gas_cost_wei TEXT,
  listing_id TEXT,
  failure_reason TEXT,
  schema_version INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  confirmed_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE UNIQUE INDEX ux_nfts_live_asset ON nfts(asset_id) WHERE status <> 'failed';`,
	`CREATE UNIQUE INDEX ux_nfts_ledger_tx_hash ON nfts(ledger_tx_hash) WHERE ledger_tx_hash IS NOT NULL;`,
	`CREATE TABLE marketplace_listings (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  asset_id TEXT NOT NULL,
  nft_id TEXT,
  seller_id TEXT NOT NULL,
  seller_wallet TEXT,
  price TEXT NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  expires_at DATETIME,
  tx_hash TEXT,
  sale_reference TEXT,
  sold_at DATETIME,
  schema_version INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE UNIQUE INDEX ux_listings_active_asset ON marketplace_listings(asset_id) WHERE status = 'active';`,
	`CREATE UNIQUE INDEX ux_listings_tx_hash ON marketplace_listings(tx_hash) WHERE tx_hash IS NOT NULL;`,
}

func pendingTable(name string) string {
	return `CREATE TABLE ` + name + ` (
  resource_id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL,
  checkout_session_id TEXT NOT NULL,
  amount TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'usd',
  paid_at DATETIME NOT NULL,
  consumed_at DATETIME,
  expires_at DATETIME NOT NULL,
  schema_version INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
}

// Open returns a fresh in-memory database private to the calling test.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_") + "_" + uuid.NewString()
	conn, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	statements := append([]string{}, schema...)
	statements = append(statements, pendingTable("pending_mints"), pendingTable("pending_analyses"))
	for _, stmt := range statements {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	// SQLite allows one writer; concurrent tests queue on the single connection.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}
