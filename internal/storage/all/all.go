// Package all links every storage backend into the binary.
package all

import (
	// SQL Server driver registered as "sqlserver".
	_ "github.com/microsoft/go-mssqldb"

	_ "github.com/Huy0211/DPA01-project/internal/storage/mssql"
	_ "github.com/Huy0211/DPA01-project/internal/storage/postgres"
	_ "github.com/Huy0211/DPA01-project/internal/storage/sqlite"
)
