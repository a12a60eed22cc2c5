package convert

import "testing"

func TestFromExtension(t *testing.T) {
	cases := []struct {
		ext  string
		want Format
		ok   bool
	}{
		{".pdf", FormatPDF, true},
		{"docx", FormatWord, true},
		{".DOC", FormatWord, true},
		{".xlsx", FormatExcel, true},
		{".pptx", FormatPowerPoint, true},
		{".jpeg", FormatImage, true},
		{".txt", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := FromExtension(c.ext)
		if ok != c.ok || got != c.want {
			t.Errorf("FromExtension(%q) = %q, %v; want %q, %v", c.ext, got, ok, c.want, c.ok)
		}
	}
}

func TestConversionGraph(t *testing.T) {
	if !CanConvert(FormatWord, FormatPDF) {
		t.Error("word to pdf must be supported")
	}
	if CanConvert(FormatExcel, FormatImage) {
		t.Error("excel to image must be rejected")
	}
	if CanConvert(FormatPDF, FormatExcel) {
		t.Error("pdf to excel must be rejected")
	}
	if got := len(Targets(FormatWord)); got != 4 {
		t.Errorf("expected 4 targets for word, got %d", got)
	}
	if got := len(Targets(FormatPDF)); got != 2 {
		t.Errorf("expected 2 targets for pdf, got %d", got)
	}
}

func TestOutputName(t *testing.T) {
	if got := OutputName("report.docx", FormatPDF); got != "report.pdf" {
		t.Errorf("unexpected output name %q", got)
	}
	if got := OutputName("scan.jpeg", FormatWord); got != "scan.docx" {
		t.Errorf("unexpected output name %q", got)
	}
	if got := OutputName("", FormatPDF); got != "converted.pdf" {
		t.Errorf("unexpected output name %q", got)
	}
}

func TestParseFormat(t *testing.T) {
	if format, err := ParseFormat(" word "); err != nil || format != FormatWord {
		t.Errorf("ParseFormat(word) = %q, %v", format, err)
	}
	if _, err := ParseFormat("csv"); err == nil {
		t.Error("expected error for unknown format")
	}
}
