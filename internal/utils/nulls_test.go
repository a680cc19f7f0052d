package utils

import (
	"database/sql"
	"testing"

	"github.com/guregu/null"
	"github.com/stretchr/testify/assert"
)

func TestNullStringConversions(t *testing.T) {
	assert.Equal(t, null.StringFrom("acc_1"), SqlToNullString(sql.NullString{String: "acc_1", Valid: true}))
	assert.False(t, SqlToNullString(sql.NullString{}).Valid)

	assert.Equal(t, sql.NullString{String: "acc_1", Valid: true}, NullStringToSQL(null.StringFrom("acc_1")))
	assert.Equal(t, sql.NullString{}, NullStringToSQL(null.String{}))

	assert.False(t, StringToNull("").Valid)
	assert.Equal(t, null.StringFrom("acc_1"), StringToNull("acc_1"))
}
