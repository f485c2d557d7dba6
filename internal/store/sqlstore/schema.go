package sqlstore

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS routes (
  id               BIGSERIAL PRIMARY KEY,
  route_id         TEXT NOT NULL UNIQUE,
  vessel_type      TEXT NOT NULL,
  fuel_type        TEXT NOT NULL,
  year             INTEGER NOT NULL,
  ghg_intensity    NUMERIC NOT NULL,
  fuel_consumption NUMERIC NOT NULL,
  distance         NUMERIC NOT NULL,
  total_emissions  NUMERIC NOT NULL,
  is_baseline      BOOLEAN NOT NULL DEFAULT FALSE
)`,
	`CREATE TABLE IF NOT EXISTS ship_compliance (
  id               BIGSERIAL PRIMARY KEY,
  ship_id          TEXT NOT NULL,
  year             INTEGER NOT NULL,
  cb_gco2eq        NUMERIC NOT NULL,
  target_intensity NUMERIC NOT NULL,
  actual_intensity NUMERIC NOT NULL,
  energy_in_scope  NUMERIC NOT NULL,
  computed_at      TIMESTAMPTZ NOT NULL,
  UNIQUE (ship_id, year)
)`,
	`CREATE TABLE IF NOT EXISTS bank_entries (
  id               BIGSERIAL PRIMARY KEY,
  ship_id          TEXT NOT NULL,
  year             INTEGER NOT NULL,
  amount_gco2eq    NUMERIC NOT NULL CHECK (amount_gco2eq >= 0),
  applied_amount   NUMERIC NOT NULL DEFAULT 0 CHECK (applied_amount >= 0),
  remaining_amount NUMERIC NOT NULL CHECK (remaining_amount >= 0),
  created_at       TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_bank_entries_ship_year ON bank_entries (ship_id, year, id)`,
	`CREATE TABLE IF NOT EXISTS pools (
  id           BIGSERIAL PRIMARY KEY,
  year         INTEGER NOT NULL,
  total_before NUMERIC NOT NULL,
  residual     NUMERIC NOT NULL,
  created_at   TIMESTAMPTZ NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS pool_members (
  id        BIGSERIAL PRIMARY KEY,
  pool_id   BIGINT NOT NULL REFERENCES pools (id),
  ship_id   TEXT NOT NULL,
  cb_before NUMERIC NOT NULL,
  cb_after  NUMERIC NOT NULL,
  UNIQUE (pool_id, ship_id)
)`,
}

// Amounts are stored as decimal text in sqlite so they round-trip exactly.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS routes (
  id               INTEGER PRIMARY KEY,
  route_id         TEXT NOT NULL UNIQUE,
  vessel_type      TEXT NOT NULL,
  fuel_type        TEXT NOT NULL,
  year             INTEGER NOT NULL,
  ghg_intensity    TEXT NOT NULL,
  fuel_consumption TEXT NOT NULL,
  distance         TEXT NOT NULL,
  total_emissions  TEXT NOT NULL,
  is_baseline      INTEGER NOT NULL DEFAULT 0 CHECK (is_baseline IN (0,1))
)`,
	`CREATE TABLE IF NOT EXISTS ship_compliance (
  id               INTEGER PRIMARY KEY,
  ship_id          TEXT NOT NULL,
  year             INTEGER NOT NULL,
  cb_gco2eq        TEXT NOT NULL,
  target_intensity TEXT NOT NULL,
  actual_intensity TEXT NOT NULL,
  energy_in_scope  TEXT NOT NULL,
  computed_at      DATETIME NOT NULL,
  UNIQUE (ship_id, year)
)`,
	`CREATE TABLE IF NOT EXISTS bank_entries (
  id               INTEGER PRIMARY KEY,
  ship_id          TEXT NOT NULL,
  year             INTEGER NOT NULL,
  amount_gco2eq    TEXT NOT NULL,
  applied_amount   TEXT NOT NULL DEFAULT '0',
  remaining_amount TEXT NOT NULL,
  created_at       DATETIME NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_bank_entries_ship_year ON bank_entries (ship_id, year, id)`,
	`CREATE TABLE IF NOT EXISTS pools (
  id           INTEGER PRIMARY KEY,
  year         INTEGER NOT NULL,
  total_before TEXT NOT NULL,
  residual     TEXT NOT NULL,
  created_at   DATETIME NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS pool_members (
  id        INTEGER PRIMARY KEY,
  pool_id   INTEGER NOT NULL REFERENCES pools (id),
  ship_id   TEXT NOT NULL,
  cb_before TEXT NOT NULL,
  cb_after  TEXT NOT NULL,
  UNIQUE (pool_id, ship_id)
)`,
}
