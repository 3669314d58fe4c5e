package sqlite

import "database/sql"

// schema sets up the database. It runs on every startup, so every statement
// must be idempotent.
// Money and stock quantities are stored as decimal TEXT; timestamps as unix
// milliseconds, with 0 meaning unset.
const schema = `
CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    table_id TEXT NOT NULL,
    staff_id TEXT NOT NULL DEFAULT '',
    guests INTEGER NOT NULL DEFAULT 0,
    subtotal TEXT NOT NULL,
    discount TEXT NOT NULL,
    tax TEXT NOT NULL,
    service_charge TEXT NOT NULL,
    total TEXT NOT NULL,
    status TEXT NOT NULL,
    opened_at INTEGER NOT NULL,
    closed_at INTEGER NOT NULL DEFAULT 0,
    cancel_reason TEXT NOT NULL DEFAULT '',
    forced_by TEXT NOT NULL DEFAULT '',
    force_reason TEXT NOT NULL DEFAULT '',
    unserved_line_ids TEXT NOT NULL DEFAULT '',
    seq INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS order_lines (
    id TEXT PRIMARY KEY,
    order_id TEXT NOT NULL,
    product_id TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    unit_price TEXT NOT NULL,
    subtotal TEXT NOT NULL,
    notes TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    sent_to_kitchen_at INTEGER NOT NULL DEFAULT 0,
    completed_at INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS products (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    price TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ingredients (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    unit TEXT NOT NULL,
    quantity TEXT NOT NULL,
    min_threshold TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS recipes (
    product_id TEXT NOT NULL,
    ingredient_id TEXT NOT NULL,
    quantity_per_unit TEXT NOT NULL,
    PRIMARY KEY (product_id, ingredient_id),
    FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE,
    FOREIGN KEY (ingredient_id) REFERENCES ingredients(id)
);

CREATE TABLE IF NOT EXISTS stock_transactions (
    id TEXT PRIMARY KEY,
    ingredient_id TEXT NOT NULL,
    order_id TEXT NOT NULL DEFAULT '',
    product_id TEXT NOT NULL DEFAULT '',
    kind TEXT NOT NULL,
    delta TEXT NOT NULL,
    balance TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (ingredient_id) REFERENCES ingredients(id)
);

CREATE TABLE IF NOT EXISTS split_bills (
    id TEXT PRIMARY KEY,
    order_id TEXT NOT NULL,
    mode TEXT NOT NULL,
    total TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS split_bill_parts (
    split_id TEXT NOT NULL,
    number INTEGER NOT NULL,
    payer_name TEXT NOT NULL DEFAULT '',
    amount TEXT NOT NULL,
    paid INTEGER NOT NULL DEFAULT 0,
    method TEXT NOT NULL DEFAULT '',
    paid_at INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (split_id, number),
    FOREIGN KEY (split_id) REFERENCES split_bills(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS part_items (
    split_id TEXT NOT NULL,
    part_number INTEGER NOT NULL,
    position INTEGER NOT NULL,
    line_id TEXT NOT NULL,
    amount TEXT NOT NULL,
    PRIMARY KEY (split_id, part_number, position),
    FOREIGN KEY (split_id, part_number) REFERENCES split_bill_parts(split_id, number) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id TEXT NOT NULL,
    table_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    kind TEXT NOT NULL,
    line_id TEXT NOT NULL DEFAULT '',
    product_id TEXT NOT NULL DEFAULT '',
    quantity INTEGER NOT NULL DEFAULT 0,
    from_status TEXT NOT NULL DEFAULT '',
    to_status TEXT NOT NULL DEFAULT '',
    total TEXT NOT NULL,
    forced INTEGER NOT NULL DEFAULT 0,
    reason TEXT NOT NULL DEFAULT '',
    at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_table_status ON orders(table_id, status);
CREATE INDEX IF NOT EXISTS idx_order_lines_order_id ON order_lines(order_id);
CREATE INDEX IF NOT EXISTS idx_stock_transactions_order_id ON stock_transactions(order_id);
CREATE INDEX IF NOT EXISTS idx_split_bills_status ON split_bills(status);
CREATE INDEX IF NOT EXISTS idx_events_order_seq ON events(order_id, seq);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
