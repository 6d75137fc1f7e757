package batch

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"blendflow/internal/job"
	"blendflow/internal/services"
)

// SupportedVersions lists descriptor schema versions this build understands.
var SupportedVersions = []string{"1.0"}

// Blend methods.
const (
	MethodLinear = "linear"
	MethodSNN    = "snn"
	MethodSPADE  = "spade"
)

// ValidMethods lists the accepted transform methods.
var ValidMethods = []string{MethodLinear, MethodSNN, MethodSPADE}

const (
	DefaultRatio  = 0.5
	DefaultMethod = MethodLinear
	outputSuffix  = "_blend.bvh"
)

// Descriptor is the parsed batch file.
type Descriptor struct {
	Version  string  `yaml:"version"`
	Workflow string  `yaml:"workflow"`
	Upload   Upload  `yaml:"upload"`
	Jobs     []Entry `yaml:"jobs"`
	// Blends is the legacy key for Jobs.
	Blends []Entry `yaml:"blends"`

	mode job.Mode
}

// Upload holds batch-wide publish settings.
type Upload struct {
	Folder   string         `yaml:"folder"`
	Metadata map[string]any `yaml:"metadata"`
}

// Entry is one job line of the descriptor.
type Entry struct {
	Name     string         `yaml:"name"`
	Input1   string         `yaml:"input1"`
	Input2   string         `yaml:"input2"`
	Ratio    any            `yaml:"ratio"`
	Method   string         `yaml:"method"`
	Output   string         `yaml:"output"`
	Folder   string         `yaml:"folder"`
	Metadata map[string]any `yaml:"metadata"`
}

// Load reads and validates a descriptor file.
func Load(filePath string) (*Descriptor, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrValidation, "batch", "load", fmt.Sprintf("descriptor %s not found", filePath), err)
		}
		return nil, services.Wrap(services.ErrValidation, "batch", "load", "read descriptor", err)
	}
	return Parse(data)
}

// Parse decodes and validates descriptor bytes.
func Parse(data []byte) (*Descriptor, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, services.Wrap(services.ErrValidation, "batch", "parse", "descriptor is empty", nil)
	}
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, services.WithHint(
			services.Wrap(services.ErrValidation, "batch", "parse", "malformed YAML", err),
			"check indentation and quoting in the batch descriptor",
		)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Mode returns the resolved workflow mode. Valid only after Validate succeeds.
func (d *Descriptor) Mode() job.Mode {
	return d.mode
}

// Entries returns the job entries regardless of which key declared them.
func (d *Descriptor) Entries() []Entry {
	if len(d.Jobs) > 0 {
		return d.Jobs
	}
	return d.Blends
}

// Validate checks the descriptor and resolves its mode. It returns a
// *ValidationError listing every problem found.
func (d *Descriptor) Validate() error {
	var errs ValidationError

	switch {
	case strings.TrimSpace(d.Version) == "":
		errs.add("version", "missing required field", nil)
	case !contains(SupportedVersions, d.Version):
		errs.add("version", fmt.Sprintf("unsupported version (supported: %s)", strings.Join(SupportedVersions, ", ")), d.Version)
	}

	if strings.TrimSpace(d.Workflow) == "" {
		errs.add("workflow", "missing required field", nil)
	} else if mode, err := job.ParseMode(d.Workflow); err != nil {
		names := make([]string, 0, 4)
		for _, m := range job.Modes() {
			names = append(names, string(m))
		}
		errs.add("workflow", fmt.Sprintf("invalid workflow type (valid: %s)", strings.Join(names, ", ")), d.Workflow)
	} else {
		d.mode = mode
	}

	if len(d.Jobs) > 0 && len(d.Blends) > 0 {
		errs.add("blends", "cannot be combined with jobs", nil)
	}

	entries := d.Entries()
	key := "jobs"
	if len(d.Jobs) == 0 && len(d.Blends) > 0 {
		key = "blends"
	}
	if len(entries) == 0 {
		errs.add("jobs", "must contain at least one job", nil)
	}

	outputs := make(map[string]int, len(entries))
	for i, entry := range entries {
		prefix := fmt.Sprintf("%s[%d]", key, i)
		d.validateEntry(&errs, prefix, entry)
		name := outputName(entry)
		if name == "" {
			continue
		}
		if first, dup := outputs[name]; dup {
			errs.add(prefix+".output", fmt.Sprintf("duplicate output name, also used by %s[%d]", key, first), name)
		} else {
			outputs[name] = i
		}
	}

	if errs.empty() {
		return nil
	}
	return &errs
}

func (d *Descriptor) validateEntry(errs *ValidationError, prefix string, entry Entry) {
	needsSources := d.mode == "" || d.mode.Includes(job.StageFetch) || d.mode.Includes(job.StageTransform)
	if needsSources {
		if strings.TrimSpace(entry.Input1) == "" {
			errs.add(prefix+".input1", "missing required field", nil)
		}
		if strings.TrimSpace(entry.Input2) == "" {
			errs.add(prefix+".input2", "missing required field", nil)
		}
	}

	if entry.Ratio != nil {
		switch v := entry.Ratio.(type) {
		case int:
			if v < 0 || v > 1 {
				errs.add(prefix+".ratio", "must be between 0.0 and 1.0", v)
			}
		case float64:
			if v < 0 || v > 1 {
				errs.add(prefix+".ratio", "must be between 0.0 and 1.0", v)
			}
		default:
			errs.add(prefix+".ratio", "must be a number", fmt.Sprintf("%T", v))
		}
	}

	if entry.Method != "" && !contains(ValidMethods, strings.ToLower(entry.Method)) {
		errs.add(prefix+".method", fmt.Sprintf("invalid method (valid: %s)", strings.Join(ValidMethods, ", ")), entry.Method)
	}

	if out := strings.TrimSpace(entry.Output); out != "" && !strings.HasSuffix(strings.ToLower(out), ".bvh") {
		errs.add(prefix+".output", "must be a .bvh file name", entry.Output)
	}
}

// Inputs converts the entries into job inputs with defaults applied. The
// descriptor must have passed Validate.
func (d *Descriptor) Inputs() []job.Input {
	entries := d.Entries()
	inputs := make([]job.Input, 0, len(entries))
	for i, entry := range entries {
		folder := entry.Folder
		if folder == "" {
			folder = d.Upload.Folder
		}
		metadata := stringify(d.Upload.Metadata)
		for k, v := range stringify(entry.Metadata) {
			metadata[k] = v
		}
		name := strings.TrimSpace(entry.Name)
		output := outputName(entry)
		if name == "" {
			name = strings.TrimSuffix(output, ".bvh")
		}
		if name == "" {
			name = fmt.Sprintf("job-%d", i+1)
		}
		method := strings.ToLower(entry.Method)
		if method == "" {
			method = DefaultMethod
		}
		inputs = append(inputs, job.Input{
			Name:     name,
			Source1:  strings.TrimSpace(entry.Input1),
			Source2:  strings.TrimSpace(entry.Input2),
			Ratio:    ratioOf(entry),
			Method:   method,
			Output:   output,
			Folder:   folder,
			Metadata: metadata,
		})
	}
	return inputs
}

// OutputName derives the deterministic artifact name for two sources.
func OutputName(source1, source2 string) string {
	a, b := stem(source1), stem(source2)
	if a == "" || b == "" {
		return ""
	}
	return a + "_" + b + outputSuffix
}

func outputName(entry Entry) string {
	if out := strings.TrimSpace(entry.Output); out != "" {
		return path.Base(out)
	}
	return OutputName(entry.Input1, entry.Input2)
}

func ratioOf(entry Entry) float64 {
	switch v := entry.Ratio.(type) {
	case int:
		return float64(v)
	case float64:
		return v
	default:
		return DefaultRatio
	}
}

// stem strips query strings, directories, and the extension from a locator.
func stem(locator string) string {
	s := strings.TrimSpace(locator)
	if idx := strings.IndexAny(s, "?#"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimRight(s, "/")
	if s == "" {
		return ""
	}
	base := path.Base(s)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

func stringify(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if in[k] == nil {
			out[k] = ""
			continue
		}
		out[k] = fmt.Sprint(in[k])
	}
	return out
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
