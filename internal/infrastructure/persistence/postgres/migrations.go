package postgres

// Migrations returns the embedded schema migrations in version order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_documents", UpSQL: migration001Up},
		{Version: 2, Name: "create_document_history", UpSQL: migration002Up},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: DOCUMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS documents (
    name TEXT PRIMARY KEY,
    body JSONB NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_name CHECK (name IN ('semesters', 'subjects', 'timetables', 'reminders'))
);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: DOCUMENT HISTORY
// Previous bodies are kept so a bad full-replace can be inspected by hand.
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS document_history (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    body JSONB NOT NULL,
    replaced_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_document_history_name ON document_history(name, replaced_at DESC);
`
