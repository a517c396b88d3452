//go:build unit || !integration

package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	previous := GITVERSION
	t.Cleanup(func() { GITVERSION = previous })

	GITVERSION = "v1.4.2"
	info := Get()
	assert.Equal(t, "v1.4.2", info.GitVersion)
	assert.Equal(t, "1", info.Major)
	assert.Equal(t, "4", info.Minor)
	assert.Equal(t, runtime.GOOS, info.GOOS)
	assert.Equal(t, runtime.GOARCH, info.GOARCH)
}

func TestGetDevelopmentVersion(t *testing.T) {
	info := Get()
	assert.Equal(t, DevelopmentGitVersion, info.GitVersion)
	assert.Equal(t, "0", info.Major)
}
