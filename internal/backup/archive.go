package backup

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"kagent/internal/model"
)

const metadataFile = "metadata.json"

// archive holds the entries of one backup, keyed by slash path.
type archive struct {
	Meta    model.BackupMetadata
	Entries map[string][]byte
}

// entryPath is ns/type/name.yaml.
func entryPath(ns, resourceType, name string) string {
	return path.Join(ns, resourceType, name+".yaml")
}

func writeArchive(file string, a archive) (int64, error) {
	f, err := os.Create(file)
	if err != nil {
		return 0, err
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	meta, err := json.MarshalIndent(a.Meta, "", "  ")
	if err != nil {
		f.Close()
		return 0, err
	}
	names := make([]string, 0, len(a.Entries))
	for n := range a.Entries {
		names = append(names, n)
	}
	sort.Strings(names)

	write := func(name string, data []byte) error {
		hdr := &tar.Header{Name: name, Mode: 0o600, Size: int64(len(data)), ModTime: a.Meta.Timestamp}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		_, err := tw.Write(data)
		return err
	}
	err = write(metadataFile, meta)
	for _, n := range names {
		if err != nil {
			break
		}
		err = write(n, a.Entries[n])
	}
	err = errors.Join(err, tw.Close(), gz.Close())
	if err != nil {
		f.Close()
		return 0, fmt.Errorf("write archive: %w", err)
	}
	fi, err := f.Stat()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func readArchive(file string) (archive, error) {
	a := archive{Entries: map[string][]byte{}}
	f, err := os.Open(file)
	if err != nil {
		return a, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return a, fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var sawMeta bool
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return a, fmt.Errorf("read archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := path.Clean(strings.TrimPrefix(hdr.Name, "./"))
		if strings.HasPrefix(name, "../") || path.IsAbs(name) {
			return a, fmt.Errorf("archive entry %q escapes the archive root", hdr.Name)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return a, fmt.Errorf("read %s: %w", name, err)
		}
		if name == metadataFile {
			if err := json.Unmarshal(data, &a.Meta); err != nil {
				return a, fmt.Errorf("decode metadata: %w", err)
			}
			sawMeta = true
			continue
		}
		a.Entries[name] = data
	}
	if !sawMeta {
		return a, errors.New("archive has no metadata.json")
	}
	return a, nil
}

// dirs lists the distinct values at one depth of the entry paths:
// 0 for namespaces, 1 for resource types.
func (a archive) dirs(depth int) []string {
	seen := map[string]bool{}
	var out []string
	for n := range a.Entries {
		parts := strings.Split(n, "/")
		if len(parts) != 3 || seen[parts[depth]] {
			continue
		}
		seen[parts[depth]] = true
		out = append(out, parts[depth])
	}
	sort.Strings(out)
	return out
}
