package repository

// Table names.
const (
	tableDocuments = "documents"
	tableVendors   = "vendor_information"
	tableCustomers = "customer_information"
	tablePayments  = "payment_information"
	tableLineItems = "line_items"
	tableFeedback  = "feedback_entries"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS vendor_information (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		contact_info TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS customer_information (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		contact_info TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payment_information (
		id TEXT PRIMARY KEY,
		terms TEXT NOT NULL DEFAULT '',
		date_required TEXT NOT NULL DEFAULT '',
		method TEXT NOT NULL DEFAULT '',
		additional_info TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		file_name TEXT NOT NULL,
		media_type TEXT NOT NULL,
		uploaded_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		processing_started_at TIMESTAMP,
		processed_at TIMESTAMP,
		document_type TEXT NOT NULL DEFAULT '',
		document_number TEXT NOT NULL DEFAULT '',
		document_date TEXT NOT NULL DEFAULT '',
		raw_extraction TEXT,
		needs_review BOOLEAN NOT NULL DEFAULT 0,
		vendor_id TEXT REFERENCES vendor_information(id),
		customer_id TEXT REFERENCES customer_information(id),
		payment_id TEXT REFERENCES payment_information(id),
		run_id TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS documents_status_idx ON documents(status, processing_started_at)`,
	`CREATE TABLE IF NOT EXISTS line_items (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id),
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		item_number TEXT NOT NULL DEFAULT '',
		quantity REAL NOT NULL DEFAULT 0,
		unit_measure TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		unit_cost REAL NOT NULL DEFAULT 0,
		amount REAL NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS line_items_document_idx ON line_items(document_id, run_id, position)`,
	`CREATE TABLE IF NOT EXISTS feedback_entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		document_id TEXT NOT NULL,
		comments TEXT NOT NULL DEFAULT '',
		custom_prompt TEXT NOT NULL DEFAULT '',
		problem_fields TEXT NOT NULL DEFAULT '[]',
		document_type TEXT NOT NULL,
		extraction_data TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS feedback_entries_type_idx ON feedback_entries(document_type)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS vendor_information (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		contact_info TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS customer_information (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		contact_info TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payment_information (
		id TEXT PRIMARY KEY,
		terms TEXT NOT NULL DEFAULT '',
		date_required TEXT NOT NULL DEFAULT '',
		method TEXT NOT NULL DEFAULT '',
		additional_info TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		file_name TEXT NOT NULL,
		media_type TEXT NOT NULL,
		uploaded_at TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL,
		processing_started_at TIMESTAMPTZ,
		processed_at TIMESTAMPTZ,
		document_type TEXT NOT NULL DEFAULT '',
		document_number TEXT NOT NULL DEFAULT '',
		document_date TEXT NOT NULL DEFAULT '',
		raw_extraction TEXT,
		needs_review BOOLEAN NOT NULL DEFAULT FALSE,
		vendor_id TEXT REFERENCES vendor_information(id),
		customer_id TEXT REFERENCES customer_information(id),
		payment_id TEXT REFERENCES payment_information(id),
		run_id TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS documents_status_idx ON documents(status, processing_started_at)`,
	`CREATE TABLE IF NOT EXISTS line_items (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id),
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		item_number TEXT NOT NULL DEFAULT '',
		quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
		unit_measure TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		unit_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
		amount DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS line_items_document_idx ON line_items(document_id, run_id, position)`,
	`CREATE TABLE IF NOT EXISTS feedback_entries (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		document_id TEXT NOT NULL,
		comments TEXT NOT NULL DEFAULT '',
		custom_prompt TEXT NOT NULL DEFAULT '',
		problem_fields TEXT NOT NULL DEFAULT '[]',
		document_type TEXT NOT NULL,
		extraction_data TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS feedback_entries_type_idx ON feedback_entries(document_type)`,
}
