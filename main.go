package main

import (
	// Database drivers registered for database/sql.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"sqlgate/cmd"
)

func main() {
	cmd.Execute()
}
