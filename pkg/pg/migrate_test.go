package pg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fully reserved PostgreSQL words that read like plausible column names and
// fail only at migration time, which unit tests against in-memory stores
// never reach.
var reservedColumnNames = map[string]struct{}{
	"all":               {},
	"column":            {},
	"current_date":      {},
	"current_role":      {},
	"current_time":      {},
	"current_timestamp": {},
	"current_user":      {},
	"default":           {},
	"distinct":          {},
	"do":                {},
	"end":               {},
	"grant":             {},
	"group":             {},
	"order":             {},
	"select":            {},
	"session_user":      {},
	"table":             {},
	"user":              {},
	"using":             {},
	"when":              {},
	"where":             {},
}

func TestMigrationsAvoidReservedColumnNames(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "..", "migrations", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		raw, err := os.ReadFile(file)
		require.NoError(t, err)

		inTable := false
		for _, line := range strings.Split(string(raw), "\n") {
			trimmed := strings.ToLower(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(trimmed, "create table"):
				inTable = true
				continue
			case strings.HasPrefix(trimmed, ")"):
				inTable = false
				continue
			}
			if !inTable || trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}

			name := strings.Fields(trimmed)[0]
			_, reserved := reservedColumnNames[name]
			assert.False(t, reserved,
				"%s: %q is a reserved word and cannot be a column name", filepath.Base(file), name)
		}
	}
}
