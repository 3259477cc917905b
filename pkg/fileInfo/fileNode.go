package fileInfo

import (
	"log/slog"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// FileNode is the sender-side view of what is being offered. Its checksum is
// the content hash that goes into a descriptor.
type FileNode struct {
	Name     string     `json:"name"`
	IsDir    bool       `json:"is_dir"`
	Size     int64      `json:"size"`
	MimeType string     `json:"mime_type,omitempty"`
	Checksum string     `json:"checksum,omitempty"`
	Children []FileNode `json:"children,omitempty"`
	Path     string     `json:"-"`

	fs afero.Fs
}

// CreateNode stats path on the OS filesystem.
func CreateNode(path string) (FileNode, error) {
	return CreateNodeFs(afero.NewOsFs(), path)
}

// CreateNodeFs builds the node tree for path on fs, detecting MIME types and
// computing checksums. Unreadable children are skipped.
func CreateNodeFs(fs afero.Fs, path string) (FileNode, error) {
	node, err := buildNode(fs, path)
	if err != nil {
		return FileNode{}, err
	}
	if _, err := node.CalcChecksum(); err != nil {
		return FileNode{}, err
	}
	return node, nil
}

func buildNode(fs afero.Fs, path string) (FileNode, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return FileNode{}, err
	}
	node := FileNode{
		Name:  info.Name(),
		IsDir: info.IsDir(),
		Size:  info.Size(),
		Path:  path,
		fs:    fs,
	}
	if node.IsDir {
		entries, err := afero.ReadDir(fs, path)
		if err != nil {
			return FileNode{}, err
		}

		node.Children = make([]FileNode, 0, len(entries))
		node.Size = 0

		for _, entry := range entries {
			childPath := filepath.Join(path, entry.Name())
			childNode, err := buildNode(fs, childPath)
			if err != nil {
				slog.Warn("Skipping unreadable path", "path", childPath, "error", err)
				continue
			}
			node.Children = append(node.Children, childNode)
			node.Size += childNode.Size
		}
		return node, nil
	}

	node.MimeType = detectMime(fs, path)
	return node, nil
}

func detectMime(fs afero.Fs, path string) string {
	f, err := fs.Open(path)
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()

	mime, err := mimetype.DetectReader(f)
	if err != nil {
		return "application/octet-stream"
	}
	return mime.String()
}
