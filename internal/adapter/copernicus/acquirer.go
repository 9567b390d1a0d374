package copernicus

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/lst-ingest/internal/domain"
	"github.com/couchcryptid/lst-ingest/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Acquirer downloads product archives and extracts them next to the zip.
//
// Acquisition is idempotent and crash-safe: both the zip and the extracted
// directory are written under a ".partial" name and renamed only when
// complete, so an interrupted run never leaves an artifact that a later run
// would mistake for finished.
type Acquirer struct {
	downloadURL string
	downloadDir string
	session     *Session
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
}

// NewAcquirer creates an acquirer writing into downloadDir.
func NewAcquirer(downloadURL, downloadDir string, session *Session, logger *slog.Logger, metrics *observability.Metrics) *Acquirer {
	return &Acquirer{
		downloadURL: downloadURL,
		downloadDir: downloadDir,
		session:     session,
		logger:      logger,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
	}
}

// Acquire ensures the scene's archive is downloaded and extracted locally.
// A scene already extracted is a no-op. Failures surface as
// AcquisitionError except authentication failures, which keep their type.
func (a *Acquirer) Acquire(ctx context.Context, scene domain.SceneDescriptor) (domain.SceneArchive, error) {
	archive := domain.SceneArchive{
		SceneID:      scene.ID,
		Title:        scene.Title,
		LocalPath:    filepath.Join(a.downloadDir, scene.Title+".zip"),
		ExtractedDir: filepath.Join(a.downloadDir, scene.Title),
	}

	if _, err := os.Stat(archive.ExtractedDir); err == nil {
		a.logger.Debug("scene already extracted", "title", scene.Title)
		a.metrics.DownloadsSkipped.Inc()
		archive.Extracted = true
		return archive, nil
	}

	if err := os.MkdirAll(a.downloadDir, 0o755); err != nil {
		return archive, &domain.AcquisitionError{Title: scene.Title, Err: err}
	}

	if _, err := os.Stat(archive.LocalPath); err != nil {
		start := a.clock.Now()
		if err := a.download(ctx, scene, archive.LocalPath); err != nil {
			return archive, err
		}
		a.metrics.DownloadsTotal.Inc()
		a.metrics.DownloadDuration.Observe(a.clock.Since(start).Seconds())
	} else {
		a.logger.Debug("archive already downloaded", "title", scene.Title)
	}

	if err := a.extract(archive.LocalPath, archive.ExtractedDir); err != nil {
		return archive, &domain.AcquisitionError{Title: scene.Title, Err: err}
	}

	archive.Extracted = true
	a.logger.Info("scene acquired", "title", scene.Title)
	return archive, nil
}

func (a *Acquirer) download(ctx context.Context, scene domain.SceneDescriptor, dst string) error {
	u := fmt.Sprintf("%s(%s)/$value", a.downloadURL, scene.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &domain.AcquisitionError{Title: scene.Title, Err: err}
	}

	resp, err := a.session.DoStream(req)
	if err != nil {
		var authErr *domain.AuthenticationError
		if errors.As(err, &authErr) {
			return err
		}
		return &domain.AcquisitionError{Title: scene.Title, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return &domain.AcquisitionError{Title: scene.Title, Status: resp.StatusCode}
	}

	partial := dst + ".partial"
	f, err := os.Create(partial)
	if err != nil {
		return &domain.AcquisitionError{Title: scene.Title, Err: err}
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(partial)
		return &domain.AcquisitionError{Title: scene.Title, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(partial)
		return &domain.AcquisitionError{Title: scene.Title, Err: err}
	}
	return os.Rename(partial, dst)
}

func (a *Acquirer) extract(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	partial := destDir + ".partial"
	if err := os.RemoveAll(partial); err != nil {
		return err
	}
	if err := os.MkdirAll(partial, 0o755); err != nil {
		return err
	}

	for _, f := range r.File {
		if err := extractFile(f, partial); err != nil {
			os.RemoveAll(partial)
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	return os.Rename(partial, destDir)
}

func extractFile(f *zip.File, destDir string) error {
	// Reject entries that would escape the destination.
	path := filepath.Join(destDir, filepath.Clean(f.Name))
	if !strings.HasPrefix(path, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("illegal archive path %q", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(path, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
