package app

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"

	"github.com/zurustar/fsl/pkg/cli"
	"github.com/zurustar/fsl/pkg/config"
	"github.com/zurustar/fsl/pkg/fileutil"
	"github.com/zurustar/fsl/pkg/logger"
	"github.com/zurustar/fsl/pkg/script"
	"github.com/zurustar/fsl/pkg/vm"
)

// SamplesDir 埋め込みファイルシステム内のサンプルスクリプトのディレクトリ
const SamplesDir = "samples"

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	args     *cli.Config
	settings *config.Config
	log      *slog.Logger
	embedFS  fs.FS
	stdout   io.Writer
	stderr   io.Writer
}

// Option Applicationの設定
type Option func(*Application)

// WithStdout print出力先を指定する
func WithStdout(w io.Writer) Option {
	return func(app *Application) {
		app.stdout = w
	}
}

// WithStderr ログとヘルプ以外のメッセージの出力先を指定する
func WithStderr(w io.Writer) Option {
	return func(app *Application) {
		app.stderr = w
	}
}

// New Applicationを作成
// embedFSはパス未指定時に実行するサンプルを含む（nilでも可）
func New(embedFS fs.FS, opts ...Option) *Application {
	app := &Application{
		embedFS: embedFS,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) error {
	// 1. コマンドライン引数の解析
	if err := app.parseArgs(args); err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	if app.args.ShowHelp {
		cli.PrintHelp(app.stdout)
		return nil
	}

	// 2. 設定ファイルの読み込み（コマンドライン > 環境変数 > 設定ファイル > 既定値）
	if err := app.loadSettings(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ロガーの初期化
	if err := app.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.log.Info("Application started", "config", app.settings.Path)

	// 4. スクリプトファイルの読み込み
	scripts, err := app.loadScripts()
	if err != nil {
		return fmt.Errorf("failed to load scripts: %w", err)
	}

	app.log.Info("Scripts loaded", "count", len(scripts))
	for _, s := range scripts {
		app.log.Info("Script file", "name", s.FileName, "size", s.Size)
		app.log.Debug("Script content preview", "name", s.FileName, "preview", truncate(s.Content, 100))
	}

	// 5. スクリプトの実行
	if err := app.runScripts(scripts); err != nil {
		return fmt.Errorf("script execution failed: %w", err)
	}

	app.log.Info("Application terminated normally")
	return nil
}

// parseArgs コマンドライン引数を解析
func (app *Application) parseArgs(args []string) error {
	parsed, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}
	app.args = parsed
	return nil
}

// loadSettings 設定ファイルを読み込み、コマンドライン引数で上書きする
func (app *Application) loadSettings() error {
	settings := config.Default()
	if app.args.ConfigFile != "" {
		loaded, err := config.Load(app.args.ConfigFile)
		if err != nil {
			return err
		}
		settings = loaded
	}

	if app.args.IsSet(cli.OptLogLevel) {
		settings.LogLevel = app.args.LogLevel
	}
	if app.args.IsSet(cli.OptEncoding) {
		settings.Encoding = app.args.Encoding
	}
	if app.args.IsSet(cli.OptTimeout) {
		settings.Timeout = app.args.Timeout
	}
	if app.args.IsSet(cli.OptMaxCallDepth) && app.args.MaxCallDepth > 0 {
		settings.MaxCallDepth = app.args.MaxCallDepth
	}
	if app.args.Strict {
		settings.Strict = true
	}

	app.settings = settings
	return settings.Validate()
}

// initLogger ロガーを初期化（ログは標準エラーへ）
func (app *Application) initLogger() error {
	if err := logger.InitLoggerWithWriter(app.settings.LogLevel, app.stderr); err != nil {
		return err
	}
	app.log = logger.GetLogger()
	return nil
}

// loadScripts スクリプトファイルを読み込む
// コマンドラインのパス、設定ファイルのscripts、埋め込みサンプルの順に探す
func (app *Application) loadScripts() ([]script.Script, error) {
	opts := []script.Option{
		script.WithEncoding(app.settings.Encoding),
		script.WithLogger(app.log),
	}

	paths := app.args.Paths
	if len(paths) == 0 {
		paths = app.settings.ScriptPaths()
	}
	if len(paths) > 0 {
		return script.NewLoader(fileutil.NewRealFS(""), opts...).LoadPaths(paths)
	}

	if app.embedFS == nil {
		return nil, fmt.Errorf("no scripts specified")
	}

	app.log.Info("No scripts specified, running embedded samples")
	return script.NewLoader(fileutil.NewEmbedFS(app.embedFS, SamplesDir), opts...).LoadAll()
}

// runScripts 読み込んだスクリプトを1つのVMで順に実行する
func (app *Application) runScripts(scripts []script.Script) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if app.settings.Timeout > 0 {
		app.log.Info("Timeout enabled", "duration", app.settings.Timeout)
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, app.settings.Timeout)
		defer cancel()
	}

	machine := vm.New(
		vm.WithOutput(app.stdout),
		vm.WithLogger(app.log),
		vm.WithMaxCallDepth(app.settings.MaxCallDepth),
		vm.WithStrict(app.settings.Strict),
		vm.WithPrintZero(app.settings.PrintZero),
		vm.WithEntry(app.settings.Entry),
	)

	sources := make([]vm.Source, len(scripts))
	for i, s := range scripts {
		sources[i] = vm.Source{Name: s.FileName, Text: s.Content}
	}

	err := machine.RunScripts(ctx, sources)
	app.log.Debug("Final variable store", "variables", formatStorePreview(machine.Store(), 10))
	return err
}

// truncate 文字列を指定した長さで切り詰める
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// formatStorePreview 変数ストアのプレビューを生成（デバッグ用）
func formatStorePreview(store *vm.Store, maxCount int) string {
	keys := store.Keys()
	if len(keys) == 0 {
		return "{}"
	}

	count := len(keys)
	if count > maxCount {
		count = maxCount
	}

	var result string
	for i := 0; i < count; i++ {
		if i > 0 {
			result += ", "
		}
		v, _ := store.Get(keys[i])
		result += fmt.Sprintf("%s: %s", keys[i], v)
	}

	if len(keys) > maxCount {
		result += fmt.Sprintf(", ... (%d more)", len(keys)-maxCount)
	}

	return "{" + result + "}"
}
