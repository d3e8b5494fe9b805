package store

// scanner matches both *sql.Row and *sql.Rows.
type scanner interface{ Scan(...any) error }
