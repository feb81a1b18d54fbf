package migrate

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPending(t *testing.T) {
	fsys := fstest.MapFS{
		"002_b.sql": {Data: []byte("SELECT 2")},
		"001_a.sql": {Data: []byte("SELECT 1")},
		"003_c.sql": {Data: []byte("SELECT 3")},
		"README.md": {Data: []byte("x")},
		"sub/x.sql": {Data: []byte("SELECT 4")},
	}
	names, err := Pending(fsys, map[string]bool{"002_b": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql", "003_c.sql"}, names)
}

func TestPendingAllApplied(t *testing.T) {
	fsys := fstest.MapFS{"001_a.sql": {Data: []byte("SELECT 1")}}
	names, err := Pending(fsys, map[string]bool{"001_a": true})
	require.NoError(t, err)
	assert.Empty(t, names)
}
