package metadata

import (
	"fmt"
	"os"
	"text/template"
)

// RenderISO renders the catalog record through the ISO metadata template at
// templatePath and writes the result to outPath. Template fields reference
// the CatalogRecord fields directly, for example {{.PGEName}} or
// {{.ProductionDateTime}}. Whether a missing template is an error is the
// caller's decision; this function expects the template to exist.
func RenderISO(templatePath string, record *CatalogRecord, outPath string) error {
	tmpl, err := template.ParseFiles(templatePath)
	if err != nil {
		return fmt.Errorf("failed to parse ISO template '%s': %w", templatePath, err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create ISO metadata file '%s': %w", outPath, err)
	}

	if err := tmpl.Execute(f, record); err != nil {
		f.Close()
		return fmt.Errorf("failed to render ISO metadata: %w", err)
	}

	return f.Close()
}
