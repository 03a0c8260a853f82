package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesOrder(t *testing.T) {
	up, err := Files(Up)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.up.sql"}, up)

	down, err := Files(Down)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.down.sql"}, down)
}

func TestFilesRejectsUnknownDirection(t *testing.T) {
	_, err := Files("sideways")
	assert.Error(t, err)
}
