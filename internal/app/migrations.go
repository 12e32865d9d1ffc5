package app

import "serotonyl.ru/storefront-bot/internal/db/postgres"

// Migrations — схема БД. Встроена в код, чтобы бот и ledgerctl
// поднимали одну и ту же версию без отдельных файлов.
var Migrations = []postgres.Migration{
	{Version: 1, SQL: migration001Members},
	{Version: 2, SQL: migration002Partners},
	{Version: 3, SQL: migration003Ledger},
	{Version: 4, SQL: migration004Cart},
	{Version: 5, SQL: migration005Orders},
	{Version: 6, SQL: migration006Admin},
}

var migration001Members = `
CREATE TABLE IF NOT EXISTS members (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL,
    username VARCHAR(255) NOT NULL DEFAULT '',
    first_name VARCHAR(255) NOT NULL DEFAULT '',
    last_name VARCHAR(255) NOT NULL DEFAULT '',
    is_banned BOOLEAN NOT NULL DEFAULT FALSE,
    joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_members_username ON members(username);
`

var migration002Partners = `
CREATE TABLE IF NOT EXISTS partner_profiles (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL REFERENCES members(user_id),
    program VARCHAR(16) NOT NULL DEFAULT 'DIRECT' CHECK (program IN ('DIRECT', 'MULTI_LEVEL')),
    referral_code VARCHAR(32) UNIQUE NOT NULL,
    balance NUMERIC(18,2) NOT NULL DEFAULT 0,
    bonus NUMERIC(18,2) NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS referral_edges (
    id BIGSERIAL PRIMARY KEY,
    owner_profile_id BIGINT NOT NULL REFERENCES partner_profiles(id),
    level SMALLINT NOT NULL CHECK (level BETWEEN 1 AND 3),
    referred_user_id BIGINT,
    contact TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT referral_edges_owner_referred_key UNIQUE (owner_profile_id, referred_user_id)
);
-- У пользователя ровно один пригласивший первого уровня
CREATE UNIQUE INDEX IF NOT EXISTS idx_referral_edges_one_recruiter
    ON referral_edges(referred_user_id) WHERE level = 1;
CREATE INDEX IF NOT EXISTS idx_referral_edges_owner_level ON referral_edges(owner_profile_id, level);
`

var migration003Ledger = `
CREATE TABLE IF NOT EXISTS ledger_transactions (
    id BIGSERIAL PRIMARY KEY,
    profile_id BIGINT NOT NULL REFERENCES partner_profiles(id),
    tx_type VARCHAR(8) NOT NULL CHECK (tx_type IN ('CREDIT', 'DEBIT')),
    amount NUMERIC(18,2) NOT NULL CHECK (amount > 0),
    description TEXT NOT NULL DEFAULT '',
    ref VARCHAR(128),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT ledger_transactions_profile_ref_key UNIQUE (profile_id, ref)
);
CREATE INDEX IF NOT EXISTS idx_ledger_transactions_profile_created
    ON ledger_transactions(profile_id, created_at DESC);
`

var migration004Cart = `
CREATE TABLE IF NOT EXISTS catalog_items (
    id VARCHAR(64) PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    price NUMERIC(18,2) NOT NULL CHECK (price >= 0),
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE TABLE IF NOT EXISTS cart_lines (
    user_id BIGINT NOT NULL,
    item_id VARCHAR(64) NOT NULL REFERENCES catalog_items(id),
    quantity INTEGER NOT NULL CHECK (quantity >= 1),
    added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, item_id)
);
`

var migration005Orders = `
CREATE TABLE IF NOT EXISTS orders (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed', 'cancelled')),
    total NUMERIC(18,2) NOT NULL,
    items JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status) WHERE status = 'pending';
`

var migration006Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    session_token VARCHAR(255) UNIQUE,
    authenticated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ,
    last_activity TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_user_id ON admin_sessions(user_id);
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT,
    attempt_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    success BOOLEAN NOT NULL DEFAULT FALSE
);
`
