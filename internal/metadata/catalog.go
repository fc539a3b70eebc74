// Package metadata assembles the catalog and ISO metadata records that
// accompany staged output products.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/checksum"
	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/errorcode"
	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/runconfig"
	"github.com/AliMuhammadOfficial/opera-sds-pge/internal/version"
)

// Cached system values to avoid repeated syscalls
var (
	cachedHostname string
	cachedPid      int
	cacheOnce      sync.Once
)

// initCachedValues initializes cached system values once
func initCachedValues() {
	hostname, err := os.Hostname()
	if err != nil {
		cachedHostname = "unknown"
	} else {
		cachedHostname = hostname
	}
	cachedPid = os.Getpid()
}

// OutputProduct pairs an output product file with its size and digest.
type OutputProduct struct {
	FileName string `json:"file_name"`
	Size     int64  `json:"size"`
	SHA256   string `json:"sha256"`
}

// CatalogRecord is the provenance record written alongside staged output
// products. Field order matters to downstream consumers, so the record is a
// struct rather than a map.
type CatalogRecord struct {
	PGEName            string          `json:"pge_name"`
	ConfigurationName  string          `json:"configuration_name"`
	PGEVersion         string          `json:"pge_version"`
	ProductionDateTime string          `json:"production_datetime"`
	Hostname           string          `json:"hostname"`
	Pid                int             `json:"pid"`
	InputFiles         []string        `json:"input_files"`
	AncillaryFiles     []string        `json:"ancillary_files"`
	ProductCounter     int             `json:"product_counter"`
	ProductIdentifier  string          `json:"product_identifier"`
	ErrorCodeBase      int             `json:"error_code_base"`
	CompletionCode     int             `json:"completion_code"`
	OutputProducts     []OutputProduct `json:"output_products"`
}

// CatalogBuilder assembles catalog records for PGE runs.
type CatalogBuilder struct{}

// NewCatalogBuilder returns a builder ready for use.
func NewCatalogBuilder() *CatalogBuilder {
	return &CatalogBuilder{}
}

// Build produces the catalog record for a run. The completion code is the
// fully qualified agency number for nominal completion, so consumers that
// only see the catalog can still map other reported codes onto the same
// base. Uses cached hostname and PID to avoid repeated system calls.
func (b *CatalogBuilder) Build(rc *runconfig.RunConfig, products []OutputProduct) *CatalogRecord {
	cacheOnce.Do(initCachedValues)

	return &CatalogRecord{
		PGEName:            rc.PgeName(),
		ConfigurationName:  rc.Name,
		PGEVersion:         version.Version,
		ProductionDateTime: time.Now().UTC().Format(time.RFC3339Nano),
		Hostname:           cachedHostname,
		Pid:                cachedPid,
		InputFiles:         rc.InputFiles(),
		AncillaryFiles:     rc.AncillaryFilenames(),
		ProductCounter:     rc.ProductCounter(),
		ProductIdentifier:  rc.ProductIdentifier(),
		ErrorCodeBase:      rc.ErrorCodeBase(),
		CompletionCode:     errorcode.OverallSuccess.WithBase(rc.ErrorCodeBase()),
		OutputProducts:     products,
	}
}

// BuildProducts checksums the given files and returns catalog entries for
// them, in the order given.
func BuildProducts(paths []string) ([]OutputProduct, error) {
	products := make([]OutputProduct, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat output product '%s': %w", path, err)
		}

		digest, err := checksum.FileSHA256(path)
		if err != nil {
			return nil, err
		}

		products = append(products, OutputProduct{
			FileName: filepath.Base(path),
			Size:     info.Size(),
			SHA256:   digest,
		})
	}
	return products, nil
}

// WriteCatalog marshals the record to indented JSON at
// <dir>/<ProductIdentifier>.catalog.json and returns the written path.
func (r *CatalogRecord) WriteCatalog(dir string) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode catalog metadata: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(dir, r.ProductIdentifier+".catalog.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write catalog metadata '%s': %w", path, err)
	}

	return path, nil
}
