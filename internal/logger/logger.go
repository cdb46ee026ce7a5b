package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// writerが指定された場合はそのwriterに出力する。
func Setup(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// 本番ではos.Stdoutを渡すことを想定している。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(Setup(w))
}

// FileWriter はログファイルへ追記するio.Writer。
// ログのバックアップでファイルがリネームされた後はReopenで新しいファイルに切り替える。
type FileWriter struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// OpenFile はpathを追記モードで開く。ディレクトリがなければ作成する。
func OpenFile(path string) (*FileWriter, error) {
	w := &FileWriter{path: path}
	if err := w.Reopen(); err != nil {
		return nil, err
	}
	return w, nil
}

// Channel は<dir>/<name>.logを開く。
func Channel(dir, name string) (*FileWriter, error) {
	return OpenFile(filepath.Join(dir, name+".log"))
}

// Path はログファイルのパスを返す。
func (w *FileWriter) Path() string {
	return w.path
}

func (w *FileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Write(p)
}

// Reopen は現在のファイルを閉じ、同じパスで開き直す。
func (w *FileWriter) Reopen() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	w.mu.Lock()
	old := w.file
	w.file = f
	w.mu.Unlock()

	if old != nil {
		return old.Close()
	}
	return nil
}

func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
