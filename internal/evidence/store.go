// Package evidence persists screenshots taken during directory attempts.
package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Store saves one screenshot and returns a reference to it.
type Store interface {
	Save(ctx context.Context, jobID, directoryName, stage string, png []byte) (string, error)
}

// LocalStore writes screenshots under BaseDir/jobs/<jobID>/.
type LocalStore struct {
	BaseDir string
}

func NewLocalStore(baseDir string) *LocalStore {
	return &LocalStore{BaseDir: baseDir}
}

func (s *LocalStore) Save(ctx context.Context, jobID, directoryName, stage string, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(png) == 0 {
		return "", fmt.Errorf("empty screenshot for %s", directoryName)
	}
	if ct := http.DetectContentType(png); ct != "image/png" {
		return "", fmt.Errorf("screenshot for %s is %s, not png", directoryName, ct)
	}
	if jobID == "" {
		jobID = "adhoc"
	}
	dir := s.JobPath(jobID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create job directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName(directoryName, stage))
	if err := os.WriteFile(path, png, 0644); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", path, err)
	}
	return path, nil
}

// JobPath returns the directory holding a job's screenshots.
func (s *LocalStore) JobPath(jobID string) string {
	return filepath.Join(s.BaseDir, "jobs", jobID)
}

// FileName is <slug>-<hash>-<stage>.png. The hash covers the raw name, so
// names that share a slug do not collide.
func FileName(directoryName, stage string) string {
	sum := sha256.Sum256([]byte(directoryName))
	return fmt.Sprintf("%s-%s-%s.png", Slug(directoryName), hex.EncodeToString(sum[:4]), Slug(stage))
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a directory name into a file-name-safe token.
func Slug(s string) string {
	out := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if out == "" {
		return "unnamed"
	}
	return out
}
