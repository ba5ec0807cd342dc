//go:build sqlite_vec && cgo

package retrieval

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	// Register sqlite-vec as an auto-loadable extension for the cgo SQLite
	// driver. Builds carrying this tag open the database with driver name
	// "sqlite3" to get vec0 virtual tables.
	vec.Auto()
}
