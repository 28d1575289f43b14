package whisper

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

const ModuleName = "whisper"

const checkpointBaseURL = "https://openaipublic.azureedge.net/main/whisper/models/"

var checkpointDigest = regexp.MustCompile(`/([a-f0-9]{64})/`)

type Model struct {
	Name string
	URL  string
}

// FileName is the name the library stores the checkpoint under in its cache.
func (m Model) FileName() string {
	return path.Base(m.URL)
}

// SHA256 is the checkpoint digest; upstream embeds it in the URL path.
func (m Model) SHA256() string {
	match := checkpointDigest.FindStringSubmatch(m.URL)
	if len(match) < 2 {
		return ""
	}
	return match[1]
}

type CachedModel struct {
	Model
	Path   string
	Cached bool
}

// prefetchOrder is the fixed order setup walks through.
var prefetchOrder = []string{"tiny", "base", "small", "medium", "large"}

var registry = map[string]Model{
	"tiny": {
		Name: "tiny",
		URL:  checkpointBaseURL + "65147644a518d12f04e32d6f3b26facc3f8dd46e5390956a9424a650c0ce22b9/tiny.pt",
	},
	"base": {
		Name: "base",
		URL:  checkpointBaseURL + "ed3a0b6b1c0edf879ad9b11b1af5a0e6ab5db9205f891f668f8b0e6c6326e34e/base.pt",
	},
	"small": {
		Name: "small",
		URL:  checkpointBaseURL + "9ecf779972d90ba49c06d968637d720dd632c55bbf19d441fb42bf17a411e794/small.pt",
	},
	"medium": {
		Name: "medium",
		URL:  checkpointBaseURL + "345ae4da62f9b3d59415adc60127b97c714f32e89e936602e85993674d08dcb1/medium.pt",
	},
	// "large" is an alias of large-v3 in the library.
	"large": {
		Name: "large",
		URL:  checkpointBaseURL + "e5b1a55b89c1367dacf97e3e19bfd829a01529dbfdeefa8caeb59b3f1b81dadb/large-v3.pt",
	},
}

// ModelNames returns the prefetch set in its fixed order.
func ModelNames() []string {
	names := make([]string, len(prefetchOrder))
	copy(names, prefetchOrder)
	return names
}

func LookupModel(name string) (Model, bool) {
	model, ok := registry[name]
	return model, ok
}

// SelectModels validates a user supplied list, keeping the given order and
// dropping duplicates. An empty list selects every model.
func SelectModels(names []string) ([]Model, error) {
	if len(names) == 0 {
		names = prefetchOrder
	}

	seen := make(map[string]struct{}, len(names))
	models := make([]Model, 0, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		model, ok := LookupModel(name)
		if !ok {
			return nil, fmt.Errorf("unknown model %q (known models: %s)", raw, strings.Join(prefetchOrder, ", "))
		}
		seen[name] = struct{}{}
		models = append(models, model)
	}

	if len(models) == 0 {
		return nil, errors.New("no models selected")
	}
	return models, nil
}

func ResolveCached(model Model, cacheDir string) (CachedModel, error) {
	if strings.TrimSpace(cacheDir) == "" {
		return CachedModel{}, errors.New("cache directory must not be empty")
	}

	modelPath := filepath.Join(cacheDir, model.FileName())
	info, err := os.Stat(modelPath)
	switch {
	case err == nil:
		if info.IsDir() {
			return CachedModel{}, fmt.Errorf("model path %s is a directory", modelPath)
		}
		return CachedModel{Model: model, Path: modelPath, Cached: true}, nil
	case errors.Is(err, os.ErrNotExist):
		return CachedModel{Model: model, Path: modelPath}, nil
	default:
		return CachedModel{}, fmt.Errorf("stat model path: %w", err)
	}
}

// LoadScript is the Python snippet that drives the library's own
// download-and-cache path for one model.
func LoadScript(name, downloadRoot string) string {
	if downloadRoot == "" {
		return fmt.Sprintf("import whisper; whisper.load_model(%s)", pyString(name))
	}
	return fmt.Sprintf("import whisper; whisper.load_model(%s, download_root=%s)", pyString(name), pyString(downloadRoot))
}

func pyString(value string) string {
	var b strings.Builder
	b.Grow(len(value) + 2)
	b.WriteByte('"')
	for _, r := range value {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
