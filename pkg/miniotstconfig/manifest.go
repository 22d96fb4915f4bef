package miniotstconfig

import (
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// manifestCandidates are tried, in order, in every ancestor directory
// during discovery. The project manifest's nested "config" section maps
// camelCase option names to string values.
var manifestCandidates = []string{".miniotstrc.yaml", ".miniotstrc.yml", ".miniotstrc.toml", "miniotst.yaml", "miniotst.toml"}

type manifestFile struct {
	Config map[string]string `yaml:"config" toml:"config"`
}

// manifest is the result of a successful manifest discovery: the
// resolved camelCase config map and the directory it was found in (used
// to make relative path values absolute).
type manifest struct {
	dir    string
	config map[string]string
}

// discoverManifest walks upward from startDir to the filesystem root,
// trying each manifestCandidates entry in every directory, and returns
// the first manifest whose config section is non-empty.
func discoverManifest(startDir string) (*manifest, bool) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		dir = startDir
	}

	for {
		for _, name := range manifestCandidates {
			path := filepath.Join(dir, name)
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			mf, err := parseManifestFile(name, data)
			if err != nil || len(mf.Config) == 0 {
				continue
			}
			return &manifest{dir: dir, config: mf.Config}, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil, false
}

func parseManifestFile(name string, data []byte) (*manifestFile, error) {
	var mf manifestFile
	if strings.HasSuffix(name, ".toml") {
		if err := toml.Unmarshal(data, &mf); err != nil {
			return nil, err
		}
		return &mf, nil
	}
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, err
	}
	return &mf, nil
}

// lookup returns the manifest value for key, translated from the
// SCREAMING_SNAKE enum to the manifest's camelCase convention, with
// DownloadDir/SystemBinary made absolute against the manifest's
// directory when relative.
func (m *manifest) lookup(key Key) (string, bool) {
	v, ok := m.config[keyToCamel(key)]
	if !ok || v == "" {
		return "", false
	}
	if pathValuedKeys[key] && !filepath.IsAbs(v) {
		v = filepath.Join(m.dir, v)
	}
	return v, true
}

// keyToCamel converts e.g. DOWNLOAD_DIR to downloadDir.
func keyToCamel(key Key) string {
	parts := strings.Split(string(key), "_")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		lower := strings.ToLower(p)
		if i == 0 {
			b.WriteString(lower)
			continue
		}
		b.WriteString(strings.ToUpper(lower[:1]))
		b.WriteString(lower[1:])
	}
	return b.String()
}
