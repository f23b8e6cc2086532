package monitors

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tg-sentinel-go/internal/models"
)

// mimeToExt covers attachments that arrive without a file name.
var mimeToExt = map[string]string{
	"application/pdf":    ".pdf",
	"application/zip":    ".zip",
	"application/x-rar-compressed": ".rar",
	"application/x-7z-compressed":  ".7z",
	"text/plain":         ".txt",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.ms-excel": ".xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": ".xlsx",
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"video/mp4":  ".mp4",
	"audio/mpeg": ".mp3",
	"audio/ogg":  ".ogg",
	"video/webm": ".webm",
}

// FileMonitor matches attachments by file extension.
type FileMonitor struct {
	base
	spec *models.FileSpec
	ext  string
}

func NewFile(spec *models.FileSpec, deps Deps) *FileMonitor {
	return &FileMonitor{
		base: newBase(models.MonitorFile, &spec.MonitorConfig, deps),
		spec: spec,
		ext:  normalizeExt(spec.Extension),
	}
}

func (m *FileMonitor) Spec() interface{} { return m.spec }

func (m *FileMonitor) Examine(ctx context.Context, msg *models.Message) (*Match, error) {
	if !msg.HasMedia() {
		return nil, nil
	}
	media := msg.Media

	ext := attachmentExt(media)
	if ext == "" || ext != m.ext {
		return nil, nil
	}

	name := media.FileName
	if name == "" {
		name = "unknown_file" + ext
	}
	m.log.WithFields(map[string]interface{}{
		"file_name": name,
		"size_mb":   media.SizeMB(),
	}).Info("File matched")
	return &Match{MatchedText: name}, nil
}

// attachmentExt resolves the extension from, in order, the media's own
// extension field, the file name, and the MIME type.
func attachmentExt(media *models.Media) string {
	if media.Extension != "" {
		return normalizeExt(media.Extension)
	}
	if media.FileName != "" {
		if ext := filepath.Ext(media.FileName); ext != "" {
			return normalizeExt(ext)
		}
		return ""
	}
	if media.MimeType != "" {
		return mimeToExt[media.MimeType]
	}
	return ""
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Act saves the attachment into the configured folder, honoring the size
// bounds.
func (m *FileMonitor) Act(ctx context.Context, msg *models.Message) []string {
	if m.spec.SaveFolder == "" || !msg.HasMedia() {
		return nil
	}

	sizeMB := msg.Media.SizeMB()
	if !m.spec.SizeValid(sizeMB) {
		m.log.WithField("size_mb", sizeMB).Info("File size outside configured bounds, not saving")
		return nil
	}

	if err := os.MkdirAll(m.spec.SaveFolder, 0o755); err != nil {
		m.log.WithError(err).Error("Failed to create save folder")
		return nil
	}

	tmpPath, err := m.deps.Client.DownloadMedia(ctx, msg)
	if err != nil || tmpPath == "" {
		m.log.WithError(err).Error("Failed to download file")
		return nil
	}

	name := msg.Media.FileName
	if name == "" {
		name = filepath.Base(tmpPath)
	}
	dest := filepath.Join(m.spec.SaveFolder, name)
	if err := moveFile(tmpPath, dest); err != nil {
		m.log.WithError(err).Error("Failed to save file")
		return nil
	}

	m.log.WithField("path", dest).Info("File saved")
	return []string{"file saved"}
}

// moveFile renames, falling back to copy for cross-device moves.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return os.Remove(src)
}
