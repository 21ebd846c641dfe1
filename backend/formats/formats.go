package formats

import "strings"

// supportedOutputs maps an input file extension to the output formats the
// converter can produce from it. Keys are lower-case; lookups are
// case-insensitive.
var supportedOutputs = map[string][]string{
	"md":       {"docx", "pdf", "html", "odt", "rtf", "tex", "epub"},
	"markdown": {"docx", "pdf", "html", "odt", "rtf", "tex", "epub"},
	"docx":     {"md", "pdf", "html", "odt", "rtf", "tex"},
	"html":     {"md", "pdf", "docx", "odt"},
	"htm":      {"md", "pdf", "docx", "odt"},
	"tex":      {"pdf", "docx", "md"},
	"rtf":      {"md", "docx", "pdf"},
	"odt":      {"md", "docx", "pdf"},
	"epub":     {"md", "docx", "pdf"},
	"pdf":      {"md", "docx", "html"}, // limited, included for completeness
}

// inputReaders maps an input file extension to the pandoc reader name.
var inputReaders = map[string]string{
	"md":       "markdown",
	"markdown": "markdown",
	"txt":      "markdown",
	"docx":     "docx",
	"html":     "html",
	"htm":      "html",
	"rtf":      "rtf",
	"odt":      "odt",
	"tex":      "latex",
	"epub":     "epub",
	"pdf":      "pdf", // pandoc's pdf reader is limited; kept for completeness
}

const (
	// DefaultOutput is the output format used when the client does not
	// request one.
	DefaultOutput = "docx"

	// DefaultReader is the reader used for unknown or missing input
	// extensions; unknown inputs are treated as Markdown.
	DefaultReader = "markdown"
)

// AllowedOutputs returns the output formats valid for the given input
// extension. The result is never empty: unmapped extensions get the
// default output list.
func AllowedOutputs(inputExt string) []string {
	if outputs, ok := supportedOutputs[normalize(inputExt)]; ok {
		return outputs
	}
	return []string{DefaultOutput}
}

// ReaderFor returns the pandoc reader name for the given input extension.
func ReaderFor(inputExt string) string {
	if reader, ok := inputReaders[normalize(inputExt)]; ok {
		return reader
	}
	return DefaultReader
}

// IsAllowed reports whether outputFormat is a valid target for the given
// input extension.
func IsAllowed(inputExt, outputFormat string) bool {
	want := normalize(outputFormat)
	for _, f := range AllowedOutputs(inputExt) {
		if f == want {
			return true
		}
	}
	return false
}

func normalize(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
