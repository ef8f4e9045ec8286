package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsSplit(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "0001_init.sql", names[0])

	content, err := files.ReadFile(names[0])
	require.NoError(t, err)
	stmts := splitSQL(stripSQLComments(string(content)))
	require.NotEmpty(t, stmts)
	for _, s := range stmts {
		assert.False(t, strings.HasPrefix(s, "--"), "comment leaked into %q", s)
	}
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE IF NOT EXISTS deliveries"))
}

func TestSplitSQL_DropsEmpty(t *testing.T) {
	got := splitSQL("SELECT 1;\n\n;SELECT 2;")
	assert.Equal(t, []string{"SELECT 1", "SELECT 2"}, got)
}
