package database

const postgresSchema = `
CREATE TABLE IF NOT EXISTS products (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS offers (
    id             TEXT PRIMARY KEY,
    product_id     TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
    price          DOUBLE PRECISION NOT NULL CHECK (price >= 0),
    items_in_stock INTEGER NOT NULL CHECK (items_in_stock >= 0)
);

CREATE INDEX IF NOT EXISTS idx_offers_product_id ON offers(product_id);

CREATE TABLE IF NOT EXISTS price_records (
    id          BIGSERIAL PRIMARY KEY,
    product_id  TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
    recorded_at BIGINT NOT NULL,
    mean_price  DOUBLE PRECISION NOT NULL,
    min_price   DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_records_product ON price_records(product_id, recorded_at, id);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS products (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS offers (
    id             TEXT PRIMARY KEY,
    product_id     TEXT NOT NULL,
    price          REAL NOT NULL,
    items_in_stock INTEGER NOT NULL,
    FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE,
    CHECK(price >= 0),
    CHECK(items_in_stock >= 0)
);

CREATE INDEX IF NOT EXISTS idx_offers_product_id ON offers(product_id);

CREATE TABLE IF NOT EXISTS price_records (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    product_id  TEXT NOT NULL,
    recorded_at INTEGER NOT NULL,
    mean_price  REAL NOT NULL,
    min_price   REAL NOT NULL,
    FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_price_records_product ON price_records(product_id, recorded_at, id);
`
