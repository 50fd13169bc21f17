package embedshot

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// capture renders htmlFile and writes the widget screenshot to screenshotFile.
func (r *Runner) capture(ctx context.Context, postURL, htmlFile, screenshotFile string) error {
	c, err := r.capturer()
	if err != nil {
		return err
	}

	result, err := c.CaptureElement(ctx, fileURL(htmlFile))
	if err != nil {
		return err
	}

	if r.Options.Imprint {
		result.Image, err = result.Image.AddTextToImage(normalizeURL(postURL))
		if err != nil {
			return fmt.Errorf("error adding text to image for %s: %w", postURL, err)
		}
	}

	if r.Options.CreateDirs {
		if err := os.MkdirAll(filepath.Dir(screenshotFile), 0o755); err != nil {
			return err
		}
	}

	if err := result.WriteFile(screenshotFile); err != nil {
		return fmt.Errorf("error saving screenshot: %w", err)
	}

	return nil
}

// writeArtifact writes data to path. Missing parent directories are an error
// unless createDirs is set.
func writeArtifact(path string, data []byte, createDirs bool) error {
	if createDirs {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing embed code: %w", err)
	}
	return nil
}

// fileURL returns the file:// URL of an absolute path.
func fileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
