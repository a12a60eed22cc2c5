package convert

import (
	"fmt"
	"strings"
)

// Format identifies a document family, not a single file extension.
type Format string

const (
	FormatPDF        Format = "PDF"
	FormatWord       Format = "WORD"
	FormatExcel      Format = "EXCEL"
	FormatPowerPoint Format = "POWERPOINT"
	FormatImage      Format = "IMAGE"
)

var extensionFormats = map[string]Format{
	".pdf":  FormatPDF,
	".doc":  FormatWord,
	".docx": FormatWord,
	".xls":  FormatExcel,
	".xlsx": FormatExcel,
	".ppt":  FormatPowerPoint,
	".pptx": FormatPowerPoint,
	".png":  FormatImage,
	".jpg":  FormatImage,
	".jpeg": FormatImage,
}

// targetFormats is the supported conversion graph. Absence of an edge
// means the pair is rejected before any engine work or charge.
var targetFormats = map[Format][]Format{
	FormatWord:       {FormatPDF, FormatExcel, FormatPowerPoint, FormatImage},
	FormatExcel:      {FormatPDF, FormatWord, FormatPowerPoint},
	FormatPowerPoint: {FormatPDF, FormatWord, FormatImage},
	FormatPDF:        {FormatWord, FormatImage},
	FormatImage:      {FormatPDF, FormatWord},
}

var targetExtensions = map[Format]string{
	FormatPDF:        ".pdf",
	FormatWord:       ".docx",
	FormatExcel:      ".xlsx",
	FormatPowerPoint: ".pptx",
	FormatImage:      ".png",
}

// FromExtension maps a file extension (with or without the leading dot)
// to its format family.
func FromExtension(ext string) (Format, bool) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	format, ok := extensionFormats[ext]
	return format, ok
}

// Targets returns the formats a source format can convert into.
func Targets(source Format) []Format {
	targets := targetFormats[source]
	out := make([]Format, len(targets))
	copy(out, targets)
	return out
}

// CanConvert reports whether source → target is a supported edge.
func CanConvert(source, target Format) bool {
	for _, t := range targetFormats[source] {
		if t == target {
			return true
		}
	}
	return false
}

// TargetExtension returns the output extension for a target format.
func TargetExtension(target Format) string {
	return targetExtensions[target]
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	format := Format(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := targetExtensions[format]; !ok {
		return "", fmt.Errorf("unknown format %q", s)
	}
	return format, nil
}
