// Package repository is the MySQL persistence layer.  Sentinel values
// declared here let higher layers such as handlers distinguish failure
// scenarios without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed row does not exist.
// Handlers translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write collides with existing state, for
// example a duplicate reservation number or channel name.  Handlers
// translate it into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

const (
	errDupEntry        = 1062
	errNoReferencedRow = 1452
)

// mysqlCode returns the server error number carried by err, 0 otherwise.
func mysqlCode(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// isDuplicate reports whether err is a MySQL duplicate key error.
func isDuplicate(err error) bool { return mysqlCode(err) == errDupEntry }
