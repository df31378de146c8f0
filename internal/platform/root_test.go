package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRoot(t *testing.T) {
	// base/
	//   repo/ (.notely)
	//     subdir/nested/
	//   configured/ (notely.yaml)
	//   empty/
	baseDir := t.TempDir()
	repoDir := filepath.Join(baseDir, "repo")
	subDir := filepath.Join(repoDir, "subdir")
	nestedDir := filepath.Join(subDir, "nested")
	configured := filepath.Join(baseDir, "configured")
	emptyDir := filepath.Join(baseDir, "empty")

	require.NoError(t, os.MkdirAll(nestedDir, 0755))
	require.NoError(t, os.MkdirAll(emptyDir, 0755))
	require.NoError(t, os.MkdirAll(configured, 0755))
	require.NoError(t, os.Mkdir(filepath.Join(repoDir, ".notely"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configured, DefaultConfigFile), nil, 0644))

	tests := []struct {
		name      string
		startPath string
		wantRoot  string
	}{
		{name: "Start at Root", startPath: repoDir, wantRoot: repoDir},
		{name: "Start in Subdir", startPath: subDir, wantRoot: repoDir},
		{name: "Start Nested Deeply", startPath: nestedDir, wantRoot: repoDir},
		{name: "Config File Marker", startPath: configured, wantRoot: configured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindRoot(tt.startPath)
			require.NoError(t, err)
			assert.Equal(t, filepath.Clean(tt.wantRoot), filepath.Clean(got))
		})
	}

	t.Run("No Root Found", func(t *testing.T) {
		// The temp dir may itself sit inside a git checkout; only assert
		// that the empty dir is never reported as a root.
		got, err := FindRoot(emptyDir)
		if err != nil {
			assert.ErrorIs(t, err, ErrRootNotFound)
			return
		}
		assert.NotEqual(t, emptyDir, got)
	})
}

func TestResolveVaultPath(t *testing.T) {
	assert.Equal(t, ".", ResolveVaultPath("", false))
	assert.Equal(t, "notes", ResolveVaultPath("notes", false))

	inTemp := filepath.Join(os.TempDir(), "somewhere", "vault")
	assert.Equal(t, inTemp, ResolveVaultPath(inTemp, true))

	assert.Equal(t, filepath.Join(os.TempDir(), "notely-dev", "vault"), ResolveVaultPath("./vault", true))
	assert.Equal(t, filepath.Join(os.TempDir(), "notely-dev", "default"), ResolveVaultPath("", true))
}

func TestIsDevRun(t *testing.T) {
	assert.True(t, IsDevRun(), "test binaries count as dev runs")
}
