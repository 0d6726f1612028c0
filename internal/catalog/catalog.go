// Package catalog indexes the generated documentation set and raw
// analysis fragments into a sorted, paginated resource list.
//
// The index (which URIs exist) is built once at startup and read-only
// afterwards. The file contents behind each URI are re-read from disk on
// every read, so a completed regeneration job is visible immediately
// without any cache invalidation.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/farce1/handover-sub002/internal/page"
	"github.com/farce1/handover-sub002/internal/protocol"
)

// URI namespaces for the two resource kinds.
const (
	DocsScheme     = "handover://docs/"
	AnalysisScheme = "handover://analysis/"
)

// Listing bounds for cursor pagination.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Entry is one listable resource.
type Entry struct {
	URI      string `json:"uri"`
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`

	path string
}

// Path returns the on-disk location backing the entry.
func (e Entry) Path() string { return e.path }

// Catalog is the composed, sorted resource list.
type Catalog struct {
	entries []Entry
	byURI   map[string]Entry
}

// New scans docsDir for markdown documents and analysisDir for JSON
// fragments. Either directory may be empty or absent; a missing docsDir
// only becomes an error at preflight, where the expected document set is
// checked.
func New(docsDir, analysisDir string) (*Catalog, error) {
	c := &Catalog{byURI: make(map[string]Entry)}

	if err := c.scan(docsDir, ".md", DocsScheme, "text/markdown"); err != nil {
		return nil, fmt.Errorf("scanning docs dir: %w", err)
	}
	if err := c.scan(analysisDir, ".json", AnalysisScheme, "application/json"); err != nil {
		return nil, fmt.Errorf("scanning analysis dir: %w", err)
	}

	sort.Slice(c.entries, func(i, j int) bool { return c.entries[i].URI < c.entries[j].URI })
	return c, nil
}

func (c *Catalog) scan(dir, ext, scheme, mime string) error {
	if dir == "" {
		return nil
	}
	names, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, de := range names {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ext) {
			continue
		}
		id := strings.TrimSuffix(de.Name(), ext)
		e := Entry{
			URI:      scheme + id,
			Name:     id,
			MIMEType: mime,
			path:     filepath.Join(dir, de.Name()),
		}
		c.entries = append(c.entries, e)
		c.byURI[e.URI] = e
	}
	return nil
}

// Entries returns the full sorted list.
func (c *Catalog) Entries() []Entry { return c.entries }

// URIs returns every catalog URI in sorted order.
func (c *Catalog) URIs() []string {
	uris := make([]string, len(c.entries))
	for i, e := range c.entries {
		uris[i] = e.URI
	}
	return uris
}

// Docs returns entries in the docs namespace only. Preflight uses this
// as the expected output set.
func (c *Catalog) Docs() []Entry {
	var docs []Entry
	for _, e := range c.entries {
		if strings.HasPrefix(e.URI, DocsScheme) {
			docs = append(docs, e)
		}
	}
	return docs
}

// List returns one cursor page of the catalog.
func (c *Catalog) List(cursor string, limit int) (page.Page[Entry], error) {
	return page.Paginate(c.entries, cursor, limit, DefaultPageSize, MaxPageSize)
}

// Read returns the current on-disk contents behind uri. An unknown URI
// yields a structured not-found error enumerating the valid URIs.
func (c *Catalog) Read(uri string) ([]byte, Entry, error) {
	e, ok := c.byURI[uri]
	if !ok {
		return nil, Entry{}, protocol.NotFound(
			"resource_not_found",
			fmt.Sprintf("no resource with URI %q", uri),
			"Pick a URI from availableUris and read it instead.",
			c.URIs(),
		)
	}
	data, err := os.ReadFile(e.path)
	if err != nil {
		return nil, Entry{}, protocol.ExecutionFailed(
			"resource_read_failed",
			fmt.Sprintf("reading %q: %v", uri, err),
			"Run regenerate_docs to rebuild the documentation set, then retry.",
			err,
		)
	}
	return data, e, nil
}
