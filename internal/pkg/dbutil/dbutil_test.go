package dbutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFinalizeRebindsAndRewritesLimit(t *testing.T) {
	query, args := Finalize("SELECT id FROM qa_logs WHERE outcome=? ORDER BY ctime desc LIMIT ?,?", []interface{}{"refused", uint(5), uint(20)})
	require.Equal(t, "SELECT id FROM qa_logs WHERE outcome=$1 ORDER BY ctime desc LIMIT $2 OFFSET $3", query)
	require.Equal(t, []interface{}{"refused", uint(20), uint(5)}, args)
}

func TestFinalizeWithoutLimit(t *testing.T) {
	query, args := Finalize("DELETE FROM chunks WHERE document_id=?", []interface{}{"doc"})
	require.Equal(t, "DELETE FROM chunks WHERE document_id=$1", query)
	require.Equal(t, []interface{}{"doc"}, args)
}
