package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	logger, err := New("spatial-analyst", "debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	_, err = New("spatial-analyst", "loud")
	assert.Error(t, err)
}
