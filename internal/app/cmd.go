package app

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// サブコマンド名
const (
	// CommandServe はAPIサーバーモードで起動する。サブコマンド省略時も同じ。
	CommandServe = "serve"
	// CommandWorker は日次スケジューラを起動する。
	CommandWorker = "worker"
	// CommandMigrate はデータベースマイグレーションを実行する。
	CommandMigrate = "migrate"
	// CommandRemind は期限切れTodoのリマインダーを1回送信する。
	CommandRemind = "remind"
	// CommandRotateLogs はログのバックアップを1回実行する。
	CommandRotateLogs = "rotate-logs"
	// CommandCleanupTokens は期限切れトークンを1回削除する。
	CommandCleanupTokens = "cleanup-tokens"
	// CommandHealthcheck はヘルスチェックを実行する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck = "healthcheck"
)

// runFunc は初期化済みの実行環境を受け取るコマンド本体。
type runFunc func(ctx context.Context, rt *runtime) error

// NewRootCommand はtodoapiのコマンドツリーを返す。wはログの出力先。
func NewRootCommand(w io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "todoapi",
		Short:         "Todo REST API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          withRuntime(w, runServe),
	}

	root.AddCommand(
		newCommand(w, CommandServe, "Start the API server", runServe),
		newCommand(w, CommandWorker, "Start the daily job scheduler", runWorker),
		newCommand(w, CommandMigrate, "Apply database migrations", runMigrate),
		newCommand(w, CommandRemind, "Send reminder mails for todos due yesterday", runRemind),
		newCommand(w, CommandRotateLogs, "Back up log files and remove expired backups", runRotateLogs),
		newCommand(w, CommandCleanupTokens, "Delete expired access tokens", runCleanupTokens),
		newHealthcheckCommand(),
	)
	return root
}

func newCommand(w io.Writer, name, short string, run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE:  withRuntime(w, run),
	}
}

// withRuntime は設定とログを初期化してからrunを呼び出す。
func withRuntime(w io.Writer, run runFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		rt, err := newRuntime(w)
		if err != nil {
			return err
		}
		defer rt.Close()

		name := cmd.Name()
		if !cmd.HasParent() {
			name = CommandServe
		}
		rt.logStart(name)
		return run(cmd.Context(), rt)
	}
}

// newHealthcheckCommand はフル初期化をスキップする軽量サブコマンドを返す。
func newHealthcheckCommand() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   CommandHealthcheck,
		Short: "Check that the local API server is healthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHealthcheck(cmd.Context(), target)
		},
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	cmd.Flags().StringVar(&target, "url", "http://localhost:"+port, "base URL of the API server")
	return cmd
}
