package convert

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// SofficeEngine shells out to a headless LibreOffice. soffice names its
// output after the input file, so the engine renames it to the path the
// orchestrator expects.
type SofficeEngine struct {
	Binary  string
	Timeout time.Duration
}

func NewSofficeEngine() *SofficeEngine {
	return &SofficeEngine{
		Binary:  "soffice",
		Timeout: 2 * time.Minute,
	}
}

func (e *SofficeEngine) Convert(ctx context.Context, inputPath, outputPath string, source, target Format) error {
	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	outDir := filepath.Dir(outputPath)
	ext := strings.TrimPrefix(TargetExtension(target), ".")
	cmd := exec.CommandContext(ctx, e.Binary,
		"--headless", "--convert-to", ext, "--outdir", outDir, inputPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("soffice: %w: %s", err, strings.TrimSpace(string(out)))
	}

	produced := filepath.Join(outDir,
		strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))+TargetExtension(target))
	if produced == outputPath {
		return nil
	}
	if err := os.Rename(produced, outputPath); err != nil {
		return fmt.Errorf("collect artifact: %w", err)
	}
	return nil
}
