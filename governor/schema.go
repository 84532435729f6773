package governor

// counterSchema contains the SQLite schema for the counter store.
const counterSchema = `
-- Usage counter database schema

CREATE TABLE IF NOT EXISTS usage_counters (
    key TEXT NOT NULL,
    field TEXT NOT NULL,
    value REAL NOT NULL DEFAULT 0,

    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,

    PRIMARY KEY (key, field)
);

-- Retention expiry is tracked per key, not per field
CREATE TABLE IF NOT EXISTS usage_counter_expiry (
    key TEXT PRIMARY KEY,
    expires_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_counter_expiry ON usage_counter_expiry(expires_at);
`
