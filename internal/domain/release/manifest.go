package release

// ManifestEntry is one row of the published version catalog.
type ManifestEntry struct {
	// Version is the release tag, e.g. "v18.2.0".
	Version string `json:"version"`
	// Files lists the published variant tokens, e.g. "linux-x64" or "win-x64-zip".
	Files []string `json:"files"`
}

// FindEntry returns the entry whose version equals tag exactly.
func FindEntry(entries []ManifestEntry, tag string) (*ManifestEntry, error) {
	for i := range entries {
		if entries[i].Version == tag {
			entry := entries[i]
			entry.Files = append([]string(nil), entries[i].Files...)

			return &entry, nil
		}
	}

	return nil, &NotFoundError{Tag: tag}
}
