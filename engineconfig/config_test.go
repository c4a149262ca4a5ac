package engineconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())
}

func TestLoadWithNoPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Store.NodeCapacity, cfg.Store.NodeCapacity)
	assert.Equal(t, Default().PUCT.CpuctBaseRoot, cfg.PUCT.CpuctBaseRoot)
}

func TestValidateRejectsZeroCapacity(t *testing.T) {
	cfg := Default()
	cfg.Store.NodeCapacity = 0
	assert.Error(t, cfg.validate())
}

func TestValidateRejectsZeroSelectors(t *testing.T) {
	cfg := Default()
	cfg.Search.NumSelectors = 0
	assert.Error(t, cfg.validate())
}
