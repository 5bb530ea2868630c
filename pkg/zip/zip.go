// Package zip bundles generated assets into a single downloadable archive.
package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
)

type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

// ArchiveAssets writes every asset into an in-memory zip. Duplicate
// filenames are suffixed so no entry silently shadows another.
func ArchiveAssets(assets []Asset) []byte {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	seen := make(map[string]int, len(assets))
	for _, asset := range assets {
		name := asset.Filename
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%s (%d)", name, n)
		}
		seen[asset.Filename]++
		w, err := zw.Create(name)
		if err != nil {
			continue
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil
		}
	}
	_ = zw.Close()
	return buf.Bytes()
}
