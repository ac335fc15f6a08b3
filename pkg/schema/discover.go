package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/OneOfOne/xxhash"
	"github.com/cuemby/cibcore/pkg/log"
	"github.com/cuemby/cibcore/pkg/metrics"
	"github.com/karrick/godirwalk"
	"golang.org/x/sync/errgroup"
)

func digestOf(data []byte) uint64 {
	return xxhash.Checksum64(data)
}

// Build discovers schema definitions and transforms in primaryDir and
// secondaryDir and assembles them into a catalog. primaryDir must exist
// and contain at least one definition; secondaryDir may be empty, missing
// or "". Build either returns a complete catalog or an error.
func Build(primaryDir, secondaryDir string) (*Catalog, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.CatalogBuildDuration)

	logger := log.WithComponent("schema")

	catalog, err := build(primaryDir, secondaryDir)
	if err != nil {
		metrics.CatalogBuildsTotal.WithLabelValues("failure").Inc()
		logger.Error().
			Err(err).
			Str("primary", primaryDir).
			Str("secondary", secondaryDir).
			Msg("Schema catalog build failed")
		return nil, err
	}

	metrics.CatalogBuildsTotal.WithLabelValues("success").Inc()
	logger.Info().
		Int("versions", catalog.Len()).
		Str("newest", catalog.Newest().Name).
		Dur("duration", timer.Duration()).
		Msg("Schema catalog built")
	return catalog, nil
}

func build(primaryDir, secondaryDir string) (*Catalog, error) {
	primary, err := ReadDir(primaryDir)
	if err != nil {
		return nil, fmt.Errorf("%w: primary directory: %w", ErrDiscovery, err)
	}

	var secondary []Source
	if secondaryDir != "" {
		secondary, err = ReadDir(secondaryDir)
		switch {
		case errors.Is(err, os.ErrNotExist):
			secondary = nil
		case err != nil:
			logger := log.WithComponent("schema")
			logger.Warn().
				Err(err).
				Str("dir", secondaryDir).
				Msg("Ignoring unreadable secondary schema directory")
			secondary = nil
		}
	}

	return Assemble(primary, secondary)
}

// ReadDir loads every schema and transform file of dir, in name order.
// Files are read concurrently; symlinks are followed and recorded.
func ReadDir(dir string) ([]Source, error) {
	dirents, err := godirwalk.ReadDirents(dir, nil)
	if err != nil {
		return nil, err
	}
	sort.Sort(dirents)

	var sources []Source
	for _, de := range dirents {
		if !de.IsRegular() && !de.IsSymlink() {
			continue
		}
		name := de.Name()
		if !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		if !strings.HasPrefix(name, definitionPrefix) && !strings.HasPrefix(name, transformPrefix) {
			continue
		}
		sources = append(sources, Source{
			Name:    name,
			Path:    filepath.Join(dir, name),
			Symlink: de.IsSymlink(),
		})
	}

	var g errgroup.Group
	for i := range sources {
		src := &sources[i]
		g.Go(func() error {
			data, err := os.ReadFile(src.Path)
			if err != nil {
				return err
			}
			resolved, err := filepath.EvalSymlinks(src.Path)
			if err != nil {
				return err
			}
			src.Data = data
			src.RealPath = resolved
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sources, nil
}
