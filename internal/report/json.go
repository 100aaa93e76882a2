package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/sitegrab/internal/model"
)

// JSONWriter outputs runs in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is stored in the batch wrapper.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion sets the version recorded by WriteAll.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs one run as a JSON object.
func (w *JSONWriter) Write(run *model.Run) (int, error) {
	syncErrorMessage(run)
	return w.writeJSON(run)
}

// WriteAll outputs the runs wrapped in a BatchReport.
func (w *JSONWriter) WriteAll(runs []*model.Run) (int, error) {
	for _, run := range runs {
		syncErrorMessage(run)
	}
	return w.writeJSON(&BatchReport{
		Version: w.version,
		Runs:    runs,
	})
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Trailing newline for terminal output.
	data = append(data, '\n')

	return w.output.Write(data)
}

// BatchReport is the JSON document written for a batch of runs.
type BatchReport struct {
	// Version is the sitegrab version that produced the report.
	Version string `json:"version,omitempty"`

	// Runs holds one record per seed, in input order.
	Runs []*model.Run `json:"runs"`
}

// syncErrorMessage copies run.Error into the serialized field.
func syncErrorMessage(run *model.Run) {
	if run.Error != nil && run.ErrorMessage == "" {
		run.ErrorMessage = run.Error.Error()
	}
}
