package main

import (
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// mysqlDSNForDatabase rewrites a server DSN to select dbName with client-side
// parameter interpolation and foreign key checks off on every connection.
// An empty dbName connects without selecting a database.
func mysqlDSNForDatabase(baseDSN, dbName string) (string, error) {
	cfg, err := mysql.ParseDSN(baseDSN)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.DBName = dbName
	cfg.InterpolateParams = true
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	cfg.Params["foreign_key_checks"] = "0"
	return cfg.FormatDSN(), nil
}
