package fileutil

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileSystem は実ファイルシステムと埋め込みファイルシステムを統一的に扱うインターフェース
type FileSystem interface {
	// ReadFile はファイルの内容を読み込む（大文字小文字を無視）
	ReadFile(name string) ([]byte, error)
	// Stat はファイル情報を返す（大文字小文字を無視）
	Stat(name string) (fs.FileInfo, error)
	// ReadDir はディレクトリの内容を名前順で返す
	ReadDir(name string) ([]fs.DirEntry, error)
	// BasePath はベースパスを返す
	BasePath() string
	// IsEmbedded は埋め込みファイルシステムかどうかを返す
	IsEmbedded() bool
}

// RealFS は実ファイルシステムへのアクセスを提供する
// basePathが空の場合、パスはそのまま（カレントディレクトリ基準）で扱う
type RealFS struct {
	basePath string
}

// NewRealFS は実ファイルシステム用のFileSystemを作成する
func NewRealFS(basePath string) *RealFS {
	return &RealFS{basePath: basePath}
}

func (r *RealFS) ReadFile(name string) ([]byte, error) {
	actualPath, err := r.locate(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(actualPath)
}

func (r *RealFS) Stat(name string) (fs.FileInfo, error) {
	actualPath, err := r.locate(name)
	if err != nil {
		return nil, err
	}
	return os.Stat(actualPath)
}

func (r *RealFS) ReadDir(name string) ([]fs.DirEntry, error) {
	actualPath, err := r.locate(name)
	if err != nil {
		return nil, err
	}
	return os.ReadDir(actualPath)
}

func (r *RealFS) BasePath() string {
	return r.basePath
}

func (r *RealFS) IsEmbedded() bool {
	return false
}

func (r *RealFS) resolvePath(name string) string {
	if name == "" {
		name = "."
	}
	if r.basePath != "" && !filepath.IsAbs(name) {
		return filepath.Join(r.basePath, name)
	}
	return filepath.Clean(name)
}

// locate はパスを解決し、存在しなければ大文字小文字を無視して探す
func (r *RealFS) locate(name string) (string, error) {
	p := r.resolvePath(name)
	if _, err := os.Stat(p); err == nil {
		return p, nil
	}
	return FindFileCaseInsensitive(filepath.Dir(p), filepath.Base(p))
}

// EmbedFS は埋め込みファイルシステムへのアクセスを提供する
type EmbedFS struct {
	fsys     fs.FS
	basePath string
}

// NewEmbedFS は埋め込みファイルシステム用のFileSystemを作成する
func NewEmbedFS(fsys fs.FS, basePath string) *EmbedFS {
	return &EmbedFS{fsys: fsys, basePath: basePath}
}

func (e *EmbedFS) ReadFile(name string) ([]byte, error) {
	actualPath, err := e.locate(name)
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(e.fsys, actualPath)
}

func (e *EmbedFS) Stat(name string) (fs.FileInfo, error) {
	actualPath, err := e.locate(name)
	if err != nil {
		return nil, err
	}
	return fs.Stat(e.fsys, actualPath)
}

func (e *EmbedFS) ReadDir(name string) ([]fs.DirEntry, error) {
	actualPath, err := e.locate(name)
	if err != nil {
		return nil, err
	}
	return fs.ReadDir(e.fsys, actualPath)
}

func (e *EmbedFS) BasePath() string {
	return e.basePath
}

func (e *EmbedFS) IsEmbedded() bool {
	return true
}

func (e *EmbedFS) resolvePath(name string) string {
	// embed.FSでは "/" を使用し、先頭の "/" は付けない
	cleanName := strings.TrimPrefix(strings.ReplaceAll(name, "\\", "/"), "/")
	if cleanName == "" {
		cleanName = "."
	}
	if e.basePath != "" {
		return path.Join(e.basePath, cleanName)
	}
	return path.Clean(cleanName)
}

func (e *EmbedFS) locate(name string) (string, error) {
	p := e.resolvePath(name)
	if _, err := fs.Stat(e.fsys, p); err == nil {
		return p, nil
	}
	return FindFileCaseInsensitiveFS(e.fsys, path.Dir(p), path.Base(p))
}

// WalkDir はディレクトリを再帰的に走査する
// 返されるパスはベースパスからの相対パス
func WalkDir(fsys FileSystem, root string, fn fs.WalkDirFunc) error {
	switch f := fsys.(type) {
	case *EmbedFS:
		start, err := f.locate(root)
		if err != nil {
			return err
		}
		return fs.WalkDir(f.fsys, start, func(walkPath string, d fs.DirEntry, err error) error {
			relPath := walkPath
			if f.basePath != "" {
				if walkPath == f.basePath {
					relPath = "."
				} else {
					relPath = strings.TrimPrefix(walkPath, f.basePath+"/")
				}
			}
			return fn(relPath, d, err)
		})

	case *RealFS:
		start, err := f.locate(root)
		if err != nil {
			return err
		}
		return filepath.WalkDir(start, func(walkPath string, d fs.DirEntry, err error) error {
			relPath := walkPath
			if f.basePath != "" {
				if rel, relErr := filepath.Rel(f.basePath, walkPath); relErr == nil {
					relPath = rel
				}
			}
			return fn(relPath, d, err)
		})
	}

	return fmt.Errorf("unsupported file system type %T", fsys)
}
