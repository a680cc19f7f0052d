package utils

import (
	"database/sql"

	"github.com/guregu/null"
)

func SqlToNullString(ns sql.NullString) null.String {
	if ns.Valid {
		return null.StringFrom(ns.String)
	}
	return null.String{}
}

// Converts null.String to sql.NullString
func NullStringToSQL(s null.String) sql.NullString {
	return sql.NullString{
		String: s.String,
		Valid:  s.Valid,
	}
}

// StringToNull treats the empty string as absent.
func StringToNull(s string) null.String {
	return null.NewString(s, s != "")
}
