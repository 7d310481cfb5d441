package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zurustar/fsl/pkg/logger"
)

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	Paths        []string      // スクリプトファイルまたはディレクトリ（省略時は埋め込みサンプル）
	ConfigFile   string        // YAML設定ファイルのパス
	Encoding     string        // スクリプトの文字コード（utf-8, shift_jis など）
	MaxCallDepth int           // ブロック呼び出しの最大深さ（0は設定ファイル・既定値に従う）
	Timeout      time.Duration // タイムアウト時間（0は無制限）
	LogLevel     string        // ログレベル（debug, info, warn, error）
	Strict       bool          // パース診断をエラーとして扱う
	ShowHelp     bool          // ヘルプ表示フラグ

	explicit map[string]bool // フラグまたは環境変数で明示的に指定された項目
}

// 明示指定の判定に使う項目名
const (
	OptEncoding     = "encoding"
	OptMaxCallDepth = "max-depth"
	OptTimeout      = "timeout"
	OptLogLevel     = "log-level"
	OptStrict       = "strict"
)

// 短縮形から正式名への対応
var flagAliases = map[string]string{
	"e": OptEncoding,
	"t": OptTimeout,
	"l": OptLogLevel,
}

// booleanFlags 値を取らないフラグ
var booleanFlags = map[string]bool{
	"-h": true, "--h": true, "-help": true, "--help": true,
	"-strict": true, "--strict": true,
}

// IsSet 項目がフラグまたは環境変数で明示的に指定されたかを返す
func (c *Config) IsSet(name string) bool {
	return c.explicit[name]
}

// ParseArgs コマンドライン引数を解析してConfigを返す
func ParseArgs(args []string) (*Config, error) {
	// 引数を並べ替え：フラグを前に、位置引数を後ろに
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("fsl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	config := &Config{explicit: make(map[string]bool)}

	var timeoutSec int
	fs.IntVar(&timeoutSec, "timeout", 0, "タイムアウト時間（秒）")
	fs.IntVar(&timeoutSec, "t", 0, "タイムアウト時間（秒）（短縮形）")
	fs.StringVar(&config.LogLevel, "log-level", "warn", "ログレベル（debug, info, warn, error）")
	fs.StringVar(&config.LogLevel, "l", "warn", "ログレベル（短縮形）")
	fs.StringVar(&config.Encoding, "encoding", "utf-8", "スクリプトの文字コード")
	fs.StringVar(&config.Encoding, "e", "utf-8", "スクリプトの文字コード（短縮形）")
	fs.StringVar(&config.ConfigFile, "config", "", "YAML設定ファイル")
	fs.StringVar(&config.ConfigFile, "c", "", "YAML設定ファイル（短縮形）")
	fs.IntVar(&config.MaxCallDepth, "max-depth", 0, "ブロック呼び出しの最大深さ")
	fs.BoolVar(&config.Strict, "strict", false, "パース診断をエラーとして扱う")
	fs.BoolVar(&config.ShowHelp, "help", false, "ヘルプを表示")
	fs.BoolVar(&config.ShowHelp, "h", false, "ヘルプを表示（短縮形）")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	// 明示的に指定されたフラグを記録
	fs.Visit(func(f *flag.Flag) {
		name := f.Name
		if alias, ok := flagAliases[name]; ok {
			name = alias
		}
		config.explicit[name] = true
	})

	// 環境変数からの設定（コマンドラインフラグが優先）
	if !config.IsSet(OptTimeout) {
		if timeoutEnv := os.Getenv("TIMEOUT"); timeoutEnv != "" {
			if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
				timeoutSec = t
				config.explicit[OptTimeout] = true
			}
		}
	}

	if !config.IsSet(OptLogLevel) {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
			config.explicit[OptLogLevel] = true
		}
	}

	if !config.IsSet(OptEncoding) {
		if encodingEnv := os.Getenv("FSL_ENCODING"); encodingEnv != "" {
			config.Encoding = encodingEnv
			config.explicit[OptEncoding] = true
		}
	}

	if config.ConfigFile == "" {
		config.ConfigFile = os.Getenv("FSL_CONFIG")
	}

	// タイムアウトの検証
	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second

	if config.MaxCallDepth < 0 {
		return nil, fmt.Errorf("max-depth must be non-negative, got %d", config.MaxCallDepth)
	}

	// ログレベルの検証
	if _, err := logger.ParseLevel(config.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	// 位置引数（スクリプトのパス）
	config.Paths = fs.Args()

	return config, nil
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// "--" 以降はすべて位置引数
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}

		// フラグかどうかを判定（-または--で始まる）
		if len(arg) > 1 && arg[0] == '-' {
			flags = append(flags, arg)

			// -t=5 のような形式は次の引数を消費しない
			if strings.Contains(arg, "=") {
				continue
			}

			// 次の引数が値である可能性をチェック
			// （-t 5 のような場合）
			if i+1 < len(args) && len(args[i+1]) > 0 && args[i+1][0] != '-' {
				// ブール型フラグでない場合は次の引数も追加
				if !booleanFlags[arg] {
					i++
					flags = append(flags, args[i])
				}
			}
		} else {
			// 位置引数
			positional = append(positional, arg)
		}
	}

	// フラグを前に、位置引数を後ろに配置
	return append(flags, positional...)
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp(w io.Writer) {
	fmt.Fprintf(w, `fsl - FSL Script Interpreter

Usage:
  fsl [options] [path ...]

Arguments:
  path          スクリプトファイル、またはスクリプトを含むディレクトリ（複数指定可）
                指定した順に読み込み、各スクリプトの後で init ブロックを実行
                省略した場合は設定ファイルの scripts、それもなければ埋め込みサンプルを実行

Options:
  -c, --config <file>         YAML設定ファイル
  -e, --encoding <name>       スクリプトの文字コード（デフォルト: utf-8、例: shift_jis, euc-jp）
  -t, --timeout <seconds>     指定秒数後に実行を中断（デフォルト: 無制限）
  -l, --log-level <level>     ログレベル: debug, info, warn, error（デフォルト: warn）
  --max-depth <n>             ブロック呼び出しの最大深さ（デフォルト: 1000）
  --strict                    パース診断があるスクリプトを実行しない
  -h, --help                  このヘルプを表示

Environment Variables:
  FSL_CONFIG=<file>           YAML設定ファイル
  FSL_ENCODING=<name>         スクリプトの文字コード
  TIMEOUT=<seconds>           タイムアウト時間（秒）
  LOG_LEVEL=<level>           ログレベル

Examples:
  fsl main.fsl extra.fsl          2つのスクリプトを順に実行
  fsl ./scripts                   ディレクトリ内のスクリプトを名前順に実行
  fsl -e shift_jis old.fsl        Shift-JISのスクリプトを実行
  fsl --log-level debug main.fsl  デバッグログを有効化
`)
}
