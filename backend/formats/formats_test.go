package formats

import (
	"testing"
)

func TestAllowedOutputsMarkdown(t *testing.T) {
	outputs := AllowedOutputs("md")

	for _, want := range []string{"docx", "pdf", "html"} {
		found := false
		for _, f := range outputs {
			if f == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected %q in allowed outputs for md, got %v", want, outputs)
		}
	}
}

func TestAllowedOutputsUnknownExtension(t *testing.T) {
	outputs := AllowedOutputs("unknownext")

	if len(outputs) == 0 {
		t.Fatal("Allowed outputs must never be empty")
	}
	if outputs[0] != DefaultOutput {
		t.Errorf("Expected default output %q for unknown extension, got %q", DefaultOutput, outputs[0])
	}
}

func TestAllowedOutputsEmptyExtension(t *testing.T) {
	outputs := AllowedOutputs("")
	if len(outputs) == 0 {
		t.Fatal("Allowed outputs must never be empty")
	}
}

func TestResolutionCaseInsensitive(t *testing.T) {
	lower := AllowedOutputs("md")
	upper := AllowedOutputs("MD")

	if len(lower) != len(upper) {
		t.Fatalf("Expected identical outputs for 'md' and 'MD', got %v and %v", lower, upper)
	}
	for i := range lower {
		if lower[i] != upper[i] {
			t.Errorf("Output %d differs: %q vs %q", i, lower[i], upper[i])
		}
	}

	if ReaderFor("DOCX") != "docx" {
		t.Errorf("Expected docx reader for 'DOCX', got %q", ReaderFor("DOCX"))
	}
}

func TestReaderFor(t *testing.T) {
	cases := map[string]string{
		"md":      "markdown",
		"txt":     "markdown",
		"tex":     "latex",
		"htm":     "html",
		".md":     "markdown",
		"":        DefaultReader,
		"unknown": DefaultReader,
	}

	for ext, want := range cases {
		if got := ReaderFor(ext); got != want {
			t.Errorf("ReaderFor(%q) = %q, want %q", ext, got, want)
		}
	}
}

func TestIsAllowed(t *testing.T) {
	if !IsAllowed("md", "docx") {
		t.Error("docx should be allowed for md input")
	}
	if !IsAllowed("md", "PDF") {
		t.Error("output format check should be case-insensitive")
	}
	if IsAllowed("md", "exe") {
		t.Error("exe must not be allowed for md input")
	}
	if !IsAllowed("unknownext", DefaultOutput) {
		t.Error("default output should be allowed for unknown inputs")
	}
}
