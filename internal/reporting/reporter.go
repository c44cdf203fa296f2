package reporting

import (
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/delvn/threatbrief/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Reporter defines the interface for writing an executive brief to an output.
type Reporter interface {
	// Write renders and emits a single brief.
	Write(brief *schemas.ExecutiveBrief) error
	// Close finalizes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a new reporter based on the specified format and output path.
// An empty or "stdout" path writes to standard output.
func New(format, outputPath string) (Reporter, error) {
	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	cleanup := func() {
		if !isStdOut {
			writer.Close()
		}
	}

	switch format {
	case "markdown", "md", "":
		return &markdownReporter{writer: writer}, nil
	case "json":
		return &jsonReporter{writer: writer}, nil
	default:
		cleanup()
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

type markdownReporter struct {
	writer io.WriteCloser
}

func (r *markdownReporter) Write(brief *schemas.ExecutiveBrief) error {
	if brief == nil {
		return fmt.Errorf("cannot write a nil brief")
	}
	if _, err := io.WriteString(r.writer, RenderMarkdown(brief)); err != nil {
		return fmt.Errorf("failed to write markdown brief: %w", err)
	}
	return nil
}

func (r *markdownReporter) Close() error {
	return r.writer.Close()
}

type jsonReporter struct {
	writer io.WriteCloser
}

func (r *jsonReporter) Write(brief *schemas.ExecutiveBrief) error {
	if brief == nil {
		return fmt.Errorf("cannot write a nil brief")
	}
	encoded, err := json.MarshalIndent(brief, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode brief: %w", err)
	}
	encoded = append(encoded, '\n')
	if _, err := r.writer.Write(encoded); err != nil {
		return fmt.Errorf("failed to write json brief: %w", err)
	}
	return nil
}

func (r *jsonReporter) Close() error {
	return r.writer.Close()
}
