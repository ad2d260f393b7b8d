// Package storage はアップロードされた写真ファイルのローカル保存を提供する。
package storage

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nfnt/resize"

	"github.com/hitoshi/photorate/internal/model"
)

const (
	// PublicPrefix は保存ファイルを配信するURLパスの接頭辞。
	PublicPrefix = "/uploads/"

	thumbnailPrefix = "thumb_"
	thumbnailSize   = 300
	sniffLen        = 512
)

// 許可するMIMEタイプと保存時の拡張子。
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// StoredFile は保存済みファイルの情報。
type StoredFile struct {
	FileName      string
	FilePath      string
	ThumbnailName string // サムネイルを生成できなかった場合は空
	ThumbnailPath string
	MimeType      string
	Size          int64
}

// Store はUPLOAD_DIR配下へのファイル保存を行う。
type Store struct {
	dir      string
	maxBytes int64
}

// New はStoreを生成する。保存先ディレクトリが存在しない場合は作成する。
func New(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// Dir は保存先ディレクトリを返す。
func (s *Store) Dir() string {
	return s.dir
}

// MaxBytes は1ファイルの上限サイズを返す。
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// normalizeType はContent-Typeヘッダ値からメディアタイプを取り出す。
func normalizeType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	if mediaType == "image/jpg" || mediaType == "image/pjpeg" {
		return "image/jpeg"
	}
	return mediaType
}

// Save はrの内容を上限サイズまで読み込んで保存する。
// 申告されたContent-Typeと先頭バイトから判定した形式の両方がJPEG/PNGでなければ拒否する。
// 検証に失敗した場合、書き込み途中のファイルは削除される。
func (s *Store) Save(r io.Reader, declaredType string) (*StoredFile, error) {
	declared := normalizeType(declaredType)
	if _, ok := allowedTypes[declared]; !ok {
		return nil, model.NewInvalidFileTypeError(declared)
	}

	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(head) == 0 {
		return nil, model.NewFileMissingError()
	}
	sniffed := normalizeType(http.DetectContentType(head))
	ext, ok := allowedTypes[sniffed]
	if !ok {
		return nil, model.NewInvalidFileTypeError(sniffed)
	}

	name := model.NewID().String() + ext
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	n, copyErr := io.Copy(f, io.LimitReader(br, s.maxBytes+1))
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		s.removeFile(name)
		return nil, fmt.Errorf("failed to write file: %w", copyErr)
	case closeErr != nil:
		s.removeFile(name)
		return nil, fmt.Errorf("failed to close file: %w", closeErr)
	case n > s.maxBytes:
		s.removeFile(name)
		return nil, model.NewFileTooLargeError(s.maxBytes)
	}

	stored := &StoredFile{
		FileName: name,
		FilePath: PublicPrefix + name,
		MimeType: sniffed,
		Size:     n,
	}

	if thumb, err := s.writeThumbnail(name, sniffed); err != nil {
		slog.Warn("thumbnail generation failed",
			slog.String("file", name),
			slog.String("error", err.Error()),
		)
	} else {
		stored.ThumbnailName = thumb
		stored.ThumbnailPath = PublicPrefix + thumb
	}

	return stored, nil
}

// writeThumbnail は保存済みファイルから最大300x300のサムネイルを生成する。
func (s *Store) writeThumbnail(name, mimeType string) (string, error) {
	src, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return "", err
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	thumbnail := resize.Thumbnail(thumbnailSize, thumbnailSize, img, resize.Lanczos3)

	thumbName := thumbnailPrefix + name
	dst, err := os.OpenFile(filepath.Join(s.dir, thumbName), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}

	if mimeType == "image/png" {
		err = png.Encode(dst, thumbnail)
	} else {
		err = jpeg.Encode(dst, thumbnail, &jpeg.Options{Quality: 85})
	}
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		s.removeFile(thumbName)
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return thumbName, nil
}

// Remove は保存済みファイルとサムネイルを削除する。
func (s *Store) Remove(f *StoredFile) {
	if f == nil {
		return
	}
	s.RemoveByName(f.FileName)
}

// RemoveByName はファイル名で写真ファイルとそのサムネイルを削除する。
func (s *Store) RemoveByName(name string) {
	s.removeFile(name)
	s.removeFile(thumbnailPrefix + name)
}

func (s *Store) removeFile(name string) {
	if name == "" {
		return
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to remove file",
			slog.String("file", name),
			slog.String("error", err.Error()),
		)
	}
}

// ListStale は更新日時がcutoffより前の写真ファイル名を返す。
// サムネイルは元ファイル名に読み替えて返す。
func (s *Store) ListStale(cutoff time.Time) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload dir: %w", err)
	}

	seen := make(map[string]bool)
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		name := strings.TrimPrefix(e.Name(), thumbnailPrefix)
		if _, ok := allowedTypes[mime.TypeByExtension(filepath.Ext(name))]; !ok {
			continue
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, nil
}
