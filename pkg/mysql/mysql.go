package mysql

import (
	"database/sql"
	"errors"
	"kwil-client/config"
	"kwil-client/pkg/reconnector"
	"kwil-client/util/log"
	"sort"
	"strings"
	"time"

	// Import mysql driver
	_ "github.com/go-sql-driver/mysql"
)

var (
	connConfig = map[string]string{
		"charset":         "utf8mb4",
		"parseTime":       "True",
		"loc":             "Local",
		"multiStatements": "True",
	}
)

// ErrNotInitialized is returned when a query runs before Init or Open.
var ErrNotInitialized = errors.New("mysql client not initialized")

// DB encapsulates MySQL DB variables.
type DB struct {
	db *sql.DB
}

var (
	dbClient *DB

	autoReconnectDisabled = false
)

// Init opens the configured db connection and exits if it is not usable.
func Init() {
	log.Infof("Connect to db: %s", config.GetDBInfo())

	if err := Open(config.GetDbConnStr()); err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
}

// Open connects to the database at connStr, a go-sql-driver DSN without
// parameters, and checks the connection.
func Open(connStr string) error {
	if connCfg := getConnConfig(); connCfg != "" {
		connStr += "?" + connCfg
	}

	db, err := sql.Open("mysql", connStr)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	db.SetConnMaxLifetime(1 * time.Hour)

	dbClient = &DB{db}
	return nil
}

// Close closes the connection pool.
func Close() error {
	if dbClient == nil {
		return nil
	}

	err := dbClient.db.Close()
	dbClient = nil
	return err
}

// DisableAutoReconnect disables auto-reconnect feature.
func DisableAutoReconnect() {
	autoReconnectDisabled = true
}

func getConnConfig() string {
	var configSlice []string

	for k, v := range connConfig {
		configSlice = append(configSlice, k+"="+v)
	}
	sort.Strings(configSlice)

	return strings.Join(configSlice, "&")
}

// Compose joins the lines of a query.
func Compose(query []string) string {
	return strings.Join(query, " ")
}

// Exec executes a statement, reconnecting once if the connection was lost.
func Exec(query string, args ...interface{}) (sql.Result, error) {
	db, err := dbReady()
	if err != nil {
		return nil, err
	}

	result, err := db.db.Exec(query, args...)
	if err != nil && db.retry() {
		return db.db.Exec(query, args...)
	}
	return result, err
}

// Query runs a query returning rows.
func Query(query string, args ...interface{}) (*sql.Rows, error) {
	db, err := dbReady()
	if err != nil {
		return nil, err
	}

	rows, err := db.db.Query(query, args...)
	if err != nil && db.retry() {
		return db.db.Query(query, args...)
	}
	return rows, err
}

// QueryRow scans the first row of a query into dest.
func QueryRow(query string, args []interface{}, dest ...interface{}) error {
	db, err := dbReady()
	if err != nil {
		return err
	}

	err = db.db.QueryRow(query, args...).Scan(dest...)
	if err != nil && !IsRecordNotFoundError(err) && db.retry() {
		return db.db.QueryRow(query, args...).Scan(dest...)
	}
	return err
}

// Trans runs f in a transaction, committing if it returns nil.
func Trans(f func(sqlTx *sql.Tx) error) error {
	db, err := dbReady()
	if err != nil {
		return err
	}

	sqlTx, err := db.db.Begin()
	if err != nil {
		return err
	}

	if err := f(sqlTx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			log.Error(rbErr)
		}
		return err
	}

	return sqlTx.Commit()
}

// retry reports whether the failed operation should run again, after
// the connection was restored.
func (db *DB) retry() bool {
	if autoReconnectDisabled || !db.lostConnection() {
		return false
	}

	db.reconnect()
	return true
}

func (db *DB) reconnect() {
	reconnector.Reconnect("Mysql", func() error {
		return db.db.Ping()
	})
}

func (db *DB) lostConnection() bool {
	return db.db.Ping() != nil
}

func dbReady() (*DB, error) {
	if dbClient == nil {
		return nil, ErrNotInitialized
	}
	return dbClient, nil
}
