// Package postgres is the durable store of URLs and users. It is the source of truth;
// every other tier is derived from it.
package postgres

import (
	"errors"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationErrCode = "23505"

const (
	usersEmailKey    = "users_email_key"
	usersUsernameKey = "users_username_key"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// uniqueViolation returns the violated constraint name if err is a unique violation.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationErrCode {
		return pgErr.ConstraintName, true
	}
	return "", false
}

func isUniqueViolationError(err error) bool {
	_, ok := uniqueViolation(err)
	return ok
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching s anywhere, with wildcards in s escaped.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
