package fileInfo

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

func TestCreateNodeFs_File(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := "<html><body>hello</body></html>"
	require.NoError(t, afero.WriteFile(fs, "/share/index.html", []byte(content), 0o644))

	node, err := CreateNodeFs(fs, "/share/index.html")
	require.NoError(t, err)

	assert.Equal(t, "index.html", node.Name)
	assert.False(t, node.IsDir)
	assert.Equal(t, int64(len(content)), node.Size)
	assert.Equal(t, sha(content), node.Checksum)
	assert.Contains(t, node.MimeType, "text/html")
}

func TestCreateNodeFs_Directory(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/share/b.txt", []byte("bbb"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/share/a.txt", []byte("aa"), 0o644))

	node, err := CreateNodeFs(fs, "/share")
	require.NoError(t, err)

	assert.True(t, node.IsDir)
	assert.Equal(t, int64(5), node.Size)
	require.Len(t, node.Children, 2)
	assert.Equal(t, "a.txt", node.Children[0].Name)

	expected := sha256.Sum256([]byte("a.txt:" + sha("aa") + "|b.txt:" + sha("bbb")))
	assert.Equal(t, hex.EncodeToString(expected[:]), node.Checksum)
}

func TestCreateNodeFs_Missing(t *testing.T) {
	_, err := CreateNodeFs(afero.NewMemMapFs(), "/nope")
	assert.Error(t, err)
}

func TestVerifySHA256(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/clip.bin", []byte("video bytes"), 0o644))

	node, err := CreateNodeFs(fs, "/clip.bin")
	require.NoError(t, err)

	ok, err := node.VerifySHA256(sha("video bytes"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = node.VerifySHA256(sha("other"))
	require.NoError(t, err)
	assert.False(t, ok)
}
