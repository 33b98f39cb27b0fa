package genome

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// buildMeta records which GTF file and schema version the cached artifacts
// were derived from. It is stored as key=value lines next to the artifacts,
// or next to the database file when there is no cache directory.
type buildMeta struct {
	path string
}

// tracked reports whether there is a sidecar location. Without one every
// build is treated as fresh.
func (m buildMeta) tracked() bool {
	return m.path != ""
}

func (m buildMeta) expected(gtf FileFingerprint, schemaVersion int) []struct{ key, val string } {
	return []struct{ key, val string }{
		{"gtf_size", strconv.FormatInt(gtf.Size, 10)},
		{"gtf_modtime", gtf.ModTime.UTC().Format(time.RFC3339Nano)},
		{"schema_version", strconv.Itoa(schemaVersion)},
	}
}

// Valid reports whether the artifacts match the current GTF file.
func (m buildMeta) Valid(gtf FileFingerprint, schemaVersion int) bool {
	meta, err := m.read()
	if err != nil {
		return false
	}
	for _, c := range m.expected(gtf, schemaVersion) {
		if meta[c.key] != c.val {
			return false
		}
	}
	return true
}

func (m buildMeta) Write(gtf FileFingerprint, schemaVersion int) error {
	var lines []string
	for _, c := range m.expected(gtf, schemaVersion) {
		lines = append(lines, c.key+"="+c.val)
	}
	lines = append(lines, "gtf_path="+gtf.Path, "created_at="+time.Now().UTC().Format(time.RFC3339), "")
	return os.WriteFile(m.path, []byte(strings.Join(lines, "\n")), 0o644)
}

func (m buildMeta) Remove() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (m buildMeta) read() (map[string]string, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			meta[k] = v
		}
	}
	return meta, nil
}
