package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/observability"
)

// Writer writes corpus exports into a directory.
type Writer struct {
	dir     string
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewWriter creates a Writer for dir. metrics may be nil.
func NewWriter(dir string, logger zerolog.Logger, metrics *observability.Metrics) *Writer {
	return &Writer{
		dir:     dir,
		logger:  observability.WithComponent(logger, "export"),
		metrics: metrics,
	}
}

// Write exports c once per format and returns the paths written. File names
// derive from the run query and start time, so all files of one run share a
// base name. A JSON export is accompanied by {base}_summary.json.
func (w *Writer) Write(c *domain.Corpus, formats []Format) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	base := BaseName(c.Metadata.Query, c.Metadata.StartedAt)
	logger := observability.WithRunContext(w.logger, c.Metadata.RunID)

	var paths []string
	for _, f := range formats {
		codec, err := CodecFor(f)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(w.dir, base+"."+f.Extension())
		if err := writeFile(path, func(file *os.File) error { return codec.Encode(file, c) }); err != nil {
			return paths, fmt.Errorf("export %s: %w", f, err)
		}
		paths = append(paths, path)
		if w.metrics != nil {
			w.metrics.RecordExportWritten(string(f))
		}
		logger.Info().Str("format", string(f)).Str("path", path).Int("records", c.Len()).Msg("export written")

		if f != FormatJSON {
			continue
		}
		summary := filepath.Join(w.dir, base+"_summary.json")
		if err := writeFile(summary, func(file *os.File) error { return WriteSummary(file, c) }); err != nil {
			return paths, fmt.Errorf("export summary: %w", err)
		}
		paths = append(paths, summary)
	}
	return paths, nil
}

// writeFile writes through a temporary file renamed into place on success.
func writeFile(path string, fill func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
