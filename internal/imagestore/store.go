// Package imagestore はdata URL形式のプロフィール画像をファイルとして保存する。
package imagestore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	pngPrefix = "data:image/png;base64,"
	jpgPrefix = "data:image/jpg;base64,"
)

// FileStore は画像ファイルの保存先を抽象化するインターフェース。
type FileStore interface {
	Put(name string, data []byte) error
	Exists(name string) bool
	Delete(name string) error
	Size(name string) (int64, error)
}

// UploadError は画像として受け付けられない入力を示す。
// Messageはそのままレスポンスに出力される。
type UploadError struct {
	Message string
}

func (e *UploadError) Error() string {
	return e.Message
}

// LocalFileStore はローカルディレクトリに画像を保存するFileStore実装。
type LocalFileStore struct {
	dir string
}

var _ FileStore = (*LocalFileStore)(nil)

// NewLocalFileStore はdirを保存先とするLocalFileStoreを生成する。ディレクトリがなければ作成する。
func NewLocalFileStore(dir string) (*LocalFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalFileStore{dir: dir}, nil
}

// Dir は保存先ディレクトリを返す。
func (s *LocalFileStore) Dir() string {
	return s.dir
}

func (s *LocalFileStore) path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

func (s *LocalFileStore) Put(name string, data []byte) error {
	if err := os.WriteFile(s.path(name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}

func (s *LocalFileStore) Exists(name string) bool {
	info, err := os.Stat(s.path(name))
	return err == nil && !info.IsDir()
}

func (s *LocalFileStore) Delete(name string) error {
	if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

func (s *LocalFileStore) Size(name string) (int64, error) {
	info, err := os.Stat(s.path(name))
	if err != nil {
		return 0, fmt.Errorf("failed to stat image: %w", err)
	}
	return info.Size(), nil
}

// Config は画像保存の上限設定。
type Config struct {
	MaxBytes     int64 // 保存後のファイルサイズ上限
	MaxMegabytes int   // エラーメッセージに表示する上限
}

// Saver はdata URLを検証してFileStoreに保存する。
type Saver struct {
	files  FileStore
	config Config
	now    func() time.Time
}

// NewSaver はSaverを生成する。
func NewSaver(files FileStore, config Config) *Saver {
	return &Saver{files: files, config: config, now: time.Now}
}

// Save はdataURLを新しいファイル名で保存し、そのファイル名を返す。
// サイズは書き込み後に確認し、上限を超えた場合はファイルを削除してエラーを返す。
// 保存に成功した場合は以前の画像oldNameを削除する。
func (s *Saver) Save(dataURL, oldName string) (string, error) {
	var ext, payload string
	switch {
	case strings.HasPrefix(dataURL, pngPrefix):
		ext, payload = "png", strings.TrimPrefix(dataURL, pngPrefix)
	case strings.HasPrefix(dataURL, jpgPrefix):
		ext, payload = "jpg", strings.TrimPrefix(dataURL, jpgPrefix)
	default:
		return "", &UploadError{Message: fmt.Sprintf("Invalid data URL format. Expected %s or %s", pngPrefix, jpgPrefix)}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", &UploadError{Message: fmt.Sprintf("Invalid data URL format. Expected %s or %s", pngPrefix, jpgPrefix)}
	}

	name := fmt.Sprintf("profile-image-%d.%s", s.now().Unix(), ext)
	if err := s.files.Put(name, data); err != nil {
		return "", err
	}

	size, err := s.files.Size(name)
	if err != nil {
		return "", err
	}
	if size > s.config.MaxBytes {
		if s.files.Exists(name) {
			if err := s.files.Delete(name); err != nil {
				slog.Warn("上限超過の画像を削除できなかった", slog.String("file", name), slog.String("error", err.Error()))
			}
		}
		return "", &UploadError{Message: fmt.Sprintf("Invalid image size. Max image size is %dMB", s.config.MaxMegabytes)}
	}

	// 同名の場合は今書き込んだファイルを消してしまうため削除しない
	if oldName != "" && oldName != name && s.files.Exists(oldName) {
		if err := s.files.Delete(oldName); err != nil {
			slog.Warn("古いプロフィール画像を削除できなかった", slog.String("file", oldName), slog.String("error", err.Error()))
		}
	}

	return name, nil
}
