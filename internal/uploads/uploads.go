// Package uploads stores laptop images on local disk and removes them once
// nothing references them.
package uploads

import (
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// PublicPrefix is the URL path under which saved files are served.
const PublicPrefix = "/public/uploads/"

type Store struct {
	dir     string
	cleaner *Cleaner
	logger  *logrus.Logger
	now     func() time.Time
}

func NewStore(dir string, cleaner *Cleaner, logger *logrus.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Store{dir: dir, cleaner: cleaner, logger: logger, now: time.Now}, nil
}

// Save copies the uploaded file into the upload dir and returns its public
// path. Names are <unix-millis>-<random><ext> so two uploads never collide on
// the original filename.
func (s *Store) Save(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	name := fmt.Sprintf("%d-%d%s", s.now().UnixMilli(), rand.Int63n(1e9), filepath.Ext(fh.Filename))
	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}

	s.logger.WithFields(logrus.Fields{
		"file": name,
		"size": fh.Size,
	}).Debug("Upload saved")
	return path.Join(PublicPrefix, name), nil
}

// Discard queues removal of a file saved by Save whose row was never written.
func (s *Store) Discard(publicPath string) {
	s.cleaner.Enqueue(publicPath)
}

// localName maps a public upload path to a bare filename. ok is false for
// anything outside the upload prefix.
func localName(publicPath string) (string, bool) {
	if !strings.HasPrefix(publicPath, PublicPrefix) {
		return "", false
	}
	name := strings.TrimPrefix(publicPath, PublicPrefix)
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", false
	}
	return name, true
}
