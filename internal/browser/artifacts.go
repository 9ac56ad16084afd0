// internal/browser/artifacts.go
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const artifactCaptureTimeout = 10 * time.Second

// ArtifactWriter persists failure evidence: a screenshot and the page HTML at
// the moment a login stage failed. Capture is best-effort; a session that is
// already dead yields nothing and that is logged, not returned.
type ArtifactWriter struct {
	dir    string
	logger *zap.Logger
}

// NewArtifactWriter creates the artifacts directory lazily on first capture.
func NewArtifactWriter(dir string, logger *zap.Logger) *ArtifactWriter {
	return &ArtifactWriter{dir: dir, logger: logger.Named("artifacts")}
}

// CaptureFailure snapshots the session's current state. The returned path is
// the screenshot location, or empty when nothing could be captured.
func (w *ArtifactWriter) CaptureFailure(ctx context.Context, s *Session, stage string) string {
	if w.dir == "" {
		return ""
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		w.logger.Warn("Could not create artifacts directory.", zap.String("dir", w.dir), zap.Error(err))
		return ""
	}

	base := fmt.Sprintf("%s_%s_%s", s.AccountID(), stage, time.Now().Format("20060102T150405"))

	var shot []byte
	var html string
	err := s.run(ctx, artifactCaptureTimeout,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			shot, err = page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng).Do(ctx)
			return err
		}),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		w.logger.Warn("Failure snapshot could not be captured.", zap.String("account_id", s.AccountID()), zap.Error(err))
		return ""
	}

	shotPath := filepath.Join(w.dir, base+".png")
	if err := os.WriteFile(shotPath, shot, 0o644); err != nil {
		w.logger.Warn("Could not write failure screenshot.", zap.String("path", shotPath), zap.Error(err))
		shotPath = ""
	}
	htmlPath := filepath.Join(w.dir, base+".html")
	if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
		w.logger.Warn("Could not write failure page source.", zap.String("path", htmlPath), zap.Error(err))
	}

	w.logger.Info("Failure artifacts written.",
		zap.String("account_id", s.AccountID()),
		zap.String("stage", stage),
		zap.String("screenshot", shotPath))
	return shotPath
}
