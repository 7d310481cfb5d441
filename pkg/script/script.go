package script

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/zurustar/fsl/pkg/fileutil"
	"github.com/zurustar/fsl/pkg/logger"
)

// DefaultEncoding スクリプトの既定の文字コード
const DefaultEncoding = "utf-8"

// Script はスクリプトファイルを表す
type Script struct {
	FileName string // 読み込んだパス
	Content  string // UTF-8に変換された内容
	Size     int64  // ファイルサイズ
}

// Loader はスクリプトファイルの読み込みを行う
type Loader struct {
	fs       fileutil.FileSystem
	encoding string
	log      *slog.Logger
}

// Option Loaderの設定
type Option func(*Loader)

// WithEncoding スクリプトの文字コードを指定する（WHATWGの名前: utf-8, shift_jis, euc-jp など）
func WithEncoding(name string) Option {
	return func(l *Loader) {
		if name != "" {
			l.encoding = name
		}
	}
}

// WithLogger ロガーを指定する
func WithLogger(log *slog.Logger) Option {
	return func(l *Loader) {
		l.log = log
	}
}

// NewLoader Loaderを作成
func NewLoader(fsys fileutil.FileSystem, opts ...Option) *Loader {
	l := &Loader{
		fs:       fsys,
		encoding: DefaultEncoding,
		log:      logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadPaths 指定されたパスを順に読み込む
// ファイルはそのまま、ディレクトリは直下のスクリプトを名前順に読み込む
func (l *Loader) LoadPaths(paths []string) ([]Script, error) {
	if err := l.checkEncoding(); err != nil {
		return nil, err
	}

	var scripts []Script
	for _, p := range paths {
		info, err := l.fs.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", p, err)
		}

		if !info.IsDir() {
			s, err := l.loadScript(p)
			if err != nil {
				return nil, fmt.Errorf("failed to load script %s: %w", p, err)
			}
			scripts = append(scripts, *s)
			continue
		}

		dirScripts, err := l.loadDir(p)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, dirScripts...)
	}

	return scripts, nil
}

// LoadAll ベースパス以下のすべてのスクリプトを名前順に読み込む
func (l *Loader) LoadAll() ([]Script, error) {
	if err := l.checkEncoding(); err != nil {
		return nil, err
	}

	scriptFiles, err := l.findScriptFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to find script files: %w", err)
	}

	if len(scriptFiles) == 0 {
		return nil, fmt.Errorf("no script files found in %s", l.fs.BasePath())
	}

	var scripts []Script
	for _, filePath := range scriptFiles {
		s, err := l.loadScript(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load script %s: %w", filePath, err)
		}
		scripts = append(scripts, *s)
	}

	return scripts, nil
}

// loadDir ディレクトリ直下のスクリプトを読み込む
func (l *Loader) loadDir(dir string) ([]Script, error) {
	entries, err := l.fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var scripts []Script
	for _, entry := range entries {
		if entry.IsDir() || !fileutil.IsScriptFile(entry.Name()) {
			continue
		}
		s, err := l.loadScript(l.join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to load script %s: %w", entry.Name(), err)
		}
		scripts = append(scripts, *s)
	}

	if len(scripts) == 0 {
		return nil, fmt.Errorf("no script files found in %s", dir)
	}
	return scripts, nil
}

// findScriptFiles スクリプトファイルを検出（拡張子はcase-insensitive）
func (l *Loader) findScriptFiles() ([]string, error) {
	var scriptFiles []string

	err := fileutil.WalkDir(l.fs, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if fileutil.IsScriptFile(p) {
			scriptFiles = append(scriptFiles, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return scriptFiles, nil
}

// loadScript 単一のスクリプトファイルを読み込む
func (l *Loader) loadScript(p string) (*Script, error) {
	data, err := l.fs.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	content, err := Decode(data, l.encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to convert encoding: %w", err)
	}

	l.log.Debug("Loaded script", "file", p, "size", len(data), "encoding", l.encoding)

	return &Script{
		FileName: p,
		Content:  content,
		Size:     int64(len(data)),
	}, nil
}

func (l *Loader) join(dir, name string) string {
	if l.fs.IsEmbedded() {
		return path.Join(dir, name)
	}
	return filepath.Join(dir, name)
}

func (l *Loader) checkEncoding() error {
	if _, err := htmlindex.Get(l.encoding); err != nil {
		return fmt.Errorf("unknown encoding %q: %w", l.encoding, err)
	}
	return nil
}

// Decode 指定された文字コードからUTF-8に変換する
// 先頭のBOMは取り除く（BOMがあればその符号化を優先する）
func Decode(data []byte, encoding string) (string, error) {
	enc, err := htmlindex.Get(encoding)
	if err != nil {
		return "", fmt.Errorf("unknown encoding %q: %w", encoding, err)
	}

	decoder := unicode.BOMOverride(enc.NewDecoder())
	reader := transform.NewReader(bytes.NewReader(data), decoder)

	utf8Data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", encoding, err)
	}

	return string(utf8Data), nil
}
