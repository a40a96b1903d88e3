package cfg

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigFailsValidationWithoutMounts(t *testing.T) {
	c := Default()
	err := c.Validate()
	assert.Error(t, err)
}

func TestValidateRejectsMissingSource(t *testing.T) {
	c := Default()
	c.Mounts = []MountConfig{{Source: "/does/not/exist", Target: "/a"}}
	assert.Error(t, c.Validate())
}

func TestValidateRejectsTargetWithoutLeadingSlash(t *testing.T) {
	dir := t.TempDir()
	c := Default()
	c.Mounts = []MountConfig{{Source: dir, Target: "a"}}
	assert.ErrorContains(t, c.Validate(), "must start with")
}

func TestValidateRejectsDuplicateTargets(t *testing.T) {
	dir := t.TempDir()
	c := Default()
	c.Mounts = []MountConfig{
		{Source: dir, Target: "/a"},
		{Source: dir, Target: "/a"},
	}
	assert.ErrorContains(t, c.Validate(), "duplicate")
}

func TestValidateRejectsZeroPort(t *testing.T) {
	dir := t.TempDir()
	c := Default()
	c.Server.Port = 0
	c.Mounts = []MountConfig{{Source: dir, Target: "/a"}}
	assert.ErrorContains(t, c.Validate(), "port")
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	dir := t.TempDir()
	c := Default()
	c.Mounts = []MountConfig{{Source: dir, Target: "/a"}}
	assert.NoError(t, c.Validate())
}

func TestRoundTripThroughFile(t *testing.T) {
	dir := t.TempDir()
	c := Default()
	c.Mounts = []MountConfig{{Source: dir, Target: "/a", Description: "test"}}

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, ToFile(c, path))

	loaded, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, c.Server.Port, loaded.Server.Port)
	require.Len(t, loaded.Mounts, 1)
	assert.Equal(t, "/a", loaded.Mounts[0].Target)
	assert.Equal(t, "test", loaded.Mounts[0].Description)
}

func TestMountByTarget(t *testing.T) {
	c := Default()
	c.Mounts = []MountConfig{{Source: "/x", Target: "/a"}}

	m, ok := c.MountByTarget("/a")
	require.True(t, ok)
	assert.Equal(t, "/x", m.Source)

	_, ok = c.MountByTarget("/missing")
	assert.False(t, ok)
}

func TestSampleConfigIsWellFormedButNotValidatable(t *testing.T) {
	c := SampleConfig()
	require.Len(t, c.Mounts, 2)
	assert.Equal(t, "/bbbb", c.Mounts[0].Target)
	assert.True(t, c.Mounts[1].ReadOnly)
	assert.Error(t, c.Validate())
}
