package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/slowlime/knotd/internal/client"
)

// manifest is the on-disk knot-manifest.toml a package maintainer fills in
// before running `knot publish`, TOML-decoded the same way the CLI's own
// config and session files are.
type manifest struct {
	Version       string             `toml:"version"`
	Description   string             `toml:"description"`
	RepositoryURL string             `toml:"repository_url,omitempty"`
	TarballURL    string             `toml:"tarball_url,omitempty"`
	Checksums     []manifestChecksum `toml:"checksums"`
	Dependencies  []manifestDep      `toml:"dependencies"`
}

type manifestChecksum struct {
	Algorithm string `toml:"algorithm"`
	Value     string `toml:"value"`
}

type manifestDep struct {
	Package string `toml:"package"`
	Spec    string `toml:"spec"`
}

func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.Version == "" {
		return nil, fmt.Errorf("manifest %s is missing a version", path)
	}
	return &m, nil
}

func (m *manifest) toClientVersion() client.Version {
	v := client.Version{
		Version:     m.Version,
		Description: m.Description,
	}
	if m.RepositoryURL != "" {
		url := m.RepositoryURL
		v.RepositoryURL = &url
	}
	if m.TarballURL != "" {
		url := m.TarballURL
		v.TarballURL = &url
	}
	for _, c := range m.Checksums {
		v.Checksums = append(v.Checksums, client.Checksum{Algorithm: c.Algorithm, Value: c.Value})
	}
	for _, d := range m.Dependencies {
		v.Dependencies = append(v.Dependencies, client.Dependency{Package: d.Package, Spec: d.Spec})
	}
	return v
}
