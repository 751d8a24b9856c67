// Package images loads product photos for the first user turn.
package images

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// MaxBytes is the largest image file the API accepts inline.
const MaxBytes = 5 << 20

var extensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Image is an encoded image ready to attach to a message.
type Image struct {
	Name      string
	MediaType string
	Data      string
	// Digest is the hex BLAKE3 hash of the raw bytes.
	Digest string
}

// Loader reads images from a directory.
type Loader struct {
	logger *slog.Logger
}

// NewLoader returns a Loader. A nil logger discards warnings.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	return &Loader{logger: logger}
}

// MediaType returns the media type for a file name, or "" if the
// extension is not a supported image type.
func MediaType(name string) string {
	return extensions[strings.ToLower(filepath.Ext(name))]
}

// LoadAll returns every supported image in dir, sorted by name. A missing
// or empty directory yields an empty list. Unreadable, oversized and
// byte-identical duplicate files are skipped with a warning; LoadAll never
// fails.
func (l *Loader) LoadAll(dir string) []Image {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("reading image directory", "dir", dir, "error", err)
		}
		return nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	seen := make(map[[32]byte]string)
	var out []Image
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		mediaType := MediaType(entry.Name())
		if mediaType == "" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			l.logger.Warn("skipping image", "path", path, "error", err)
			continue
		}
		if info.Size() > MaxBytes {
			l.logger.Warn("skipping oversized image", "path", path, "bytes", info.Size())
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			l.logger.Warn("skipping image", "path", path, "error", err)
			continue
		}

		sum := blake3.Sum256(data)
		if first, dup := seen[sum]; dup {
			l.logger.Warn("skipping duplicate image", "path", path, "duplicate_of", first)
			continue
		}
		seen[sum] = entry.Name()

		out = append(out, Image{
			Name:      entry.Name(),
			MediaType: mediaType,
			Data:      base64.StdEncoding.EncodeToString(data),
			Digest:    hex.EncodeToString(sum[:]),
		})
	}
	return out
}
