package dbutil

import (
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
)

// gendry renders "_limit" as MySQL's "LIMIT offset,count".
var mysqlLimit = regexp.MustCompile(`(?i)LIMIT\s+\?\s*,\s*\?`)

// Finalize turns a gendry query into postgres form: LIMIT/OFFSET order and
// $n placeholders.
func Finalize(query string, args []interface{}) (string, []interface{}) {
	if loc := mysqlLimit.FindStringIndex(query); loc != nil {
		idx := strings.Count(query[:loc[0]], "?")
		if idx+1 < len(args) {
			args[idx], args[idx+1] = args[idx+1], args[idx]
			query = query[:loc[0]] + "LIMIT ? OFFSET ?" + query[loc[1]:]
		}
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}
