package mysql

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNoRowsAffected is returned when a statement that must change a row didn't.
var ErrNoRowsAffected = errors.New("no rows affected")

// IsDuplicateEntryError checks if duplicated record error occurred or not.
func IsDuplicateEntryError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}

	return false
}

// IsRecordNotFoundError checks if no rows was returned or not.
func IsRecordNotFoundError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// CheckIfRowsNotAffected returns ErrNoRowsAffected with the query attached
// if the statement changed nothing.
func CheckIfRowsNotAffected(result sql.Result, query []string) error {
	affectedRows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affectedRows == 0 {
		return fmt.Errorf("%w:\n%s", ErrNoRowsAffected, strings.Join(query, "\n"))
	}

	return nil
}
