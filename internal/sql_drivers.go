package internal

import (
	// Drivers for the watermill sql and riverqueue publishers, opened by name
	// through database/sql.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)
