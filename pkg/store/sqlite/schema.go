package sqlite

// Schema contains the SQL statements to create the status database schema.
const Schema = `
-- Status table: one JSON document per collection run, newest has the highest id
CREATE TABLE IF NOT EXISTS status (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    document    TEXT NOT NULL,
    created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);
`
