// Command configgen renders per-binary YAML configs from a dev profile:
// each entry names a base config, optional overrides, and the profile's
// shared logger and redis blocks are stamped into every config that uses them.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

type Profile struct {
	OutputDir string                    `yaml:"outputDir"`
	Shared    SharedProfile             `yaml:"shared"`
	Services  map[string]ServiceProfile `yaml:"services"`
}

// SharedProfile holds blocks copied into every generated config.
type SharedProfile struct {
	Logger map[string]interface{} `yaml:"logger"`
	// Redis only lands in configs whose base already has a redis section.
	Redis map[string]interface{} `yaml:"redis"`
}

type ServiceProfile struct {
	Base      string                 `yaml:"base"`
	Output    string                 `yaml:"output"`
	Overrides map[string]interface{} `yaml:"overrides"`
}

func main() {
	profilePath := flag.String("profile", "configs/dev-profile.yaml", "Path to config profile")
	outputDir := flag.String("output-dir", "", "Override output directory")
	flag.Parse()

	written, err := generate(*profilePath, *outputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	for _, path := range written {
		fmt.Println(path)
	}
}

// generate renders every service in the profile and returns the written paths.
func generate(profilePath, outputDirOverride string) ([]string, error) {
	profilePathAbs, err := filepath.Abs(profilePath)
	if err != nil {
		return nil, fmt.Errorf("resolve profile path failed: %w", err)
	}
	profile, err := loadProfile(profilePathAbs)
	if err != nil {
		return nil, fmt.Errorf("load profile failed: %w", err)
	}
	if outputDirOverride != "" {
		profile.OutputDir = outputDirOverride
	}
	if profile.OutputDir == "" {
		return nil, errors.New("output directory is required")
	}
	profileDir := filepath.Dir(profilePathAbs)
	if !filepath.IsAbs(profile.OutputDir) {
		profile.OutputDir = filepath.Join(profileDir, profile.OutputDir)
	}

	names := make([]string, 0, len(profile.Services))
	for name := range profile.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	written := make([]string, 0, len(names))
	for _, name := range names {
		path, err := renderService(profile, profileDir, name)
		if err != nil {
			return written, fmt.Errorf("service %q: %w", name, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func renderService(profile *Profile, profileDir, name string) (string, error) {
	service := profile.Services[name]
	if service.Base == "" {
		return "", errors.New("missing base config")
	}
	if !filepath.IsAbs(service.Base) {
		service.Base = filepath.Join(profileDir, service.Base)
	}
	config, err := loadYAML(service.Base)
	if err != nil {
		return "", fmt.Errorf("load base config failed: %w", err)
	}
	config = normalizeValue(config)
	if config == nil {
		config = map[string]interface{}{}
	}

	if len(service.Overrides) > 0 {
		config, err = mergeMap(config, normalizeValue(service.Overrides))
		if err != nil {
			return "", fmt.Errorf("merge overrides failed: %w", err)
		}
	}
	config, err = applyShared(profile.Shared, config)
	if err != nil {
		return "", fmt.Errorf("apply shared blocks failed: %w", err)
	}

	outputPath, err := resolveOutputPath(profile.OutputDir, service)
	if err != nil {
		return "", err
	}
	if err := writeYAML(outputPath, config); err != nil {
		return "", err
	}
	return outputPath, nil
}

func loadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile failed: %w", err)
	}
	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile failed: %w", err)
	}
	if len(profile.Services) == 0 {
		return nil, errors.New("profile has no services")
	}
	return &profile, nil
}

func loadYAML(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read yaml failed: %w", err)
	}
	var value interface{}
	if err := yaml.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("parse yaml failed: %w", err)
	}
	return value, nil
}

func writeYAML(path string, value interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir failed: %w", err)
	}
	data, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal yaml failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write yaml failed: %w", err)
	}
	return nil
}

func resolveOutputPath(outputDir string, service ServiceProfile) (string, error) {
	output := service.Output
	if output == "" {
		output = filepath.Base(service.Base)
	}
	if output == "" || output == "." {
		return "", errors.New("output path is empty")
	}
	if filepath.IsAbs(output) {
		return output, nil
	}
	return filepath.Join(outputDir, output), nil
}

func normalizeValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, v := range typed {
			out[k] = normalizeValue(v)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, v := range typed {
			key, ok := k.(string)
			if !ok {
				key = fmt.Sprintf("%v", k)
			}
			out[key] = normalizeValue(v)
		}
		return out
	case []interface{}:
		out := make([]interface{}, 0, len(typed))
		for _, item := range typed {
			out = append(out, normalizeValue(item))
		}
		return out
	default:
		return value
	}
}

func mergeMap(base interface{}, override interface{}) (interface{}, error) {
	baseMap, ok := base.(map[string]interface{})
	if !ok {
		return nil, errors.New("base config is not a map")
	}
	overrideMap, ok := override.(map[string]interface{})
	if !ok {
		return nil, errors.New("override config is not a map")
	}

	merged := make(map[string]interface{}, len(baseMap))
	for k, v := range baseMap {
		merged[k] = v
	}
	for key, overrideValue := range overrideMap {
		baseChild, baseIsMap := merged[key].(map[string]interface{})
		overrideChild, overrideIsMap := overrideValue.(map[string]interface{})
		if baseIsMap && overrideIsMap {
			combined, err := mergeMap(baseChild, overrideChild)
			if err != nil {
				return nil, err
			}
			merged[key] = combined
			continue
		}
		merged[key] = overrideValue
	}
	return merged, nil
}

func applyShared(shared SharedProfile, config interface{}) (interface{}, error) {
	if len(shared.Logger) == 0 && len(shared.Redis) == 0 {
		return config, nil
	}
	root, ok := config.(map[string]interface{})
	if !ok {
		return nil, errors.New("service config is not a map")
	}
	var err error
	if len(shared.Logger) > 0 {
		root, err = mergeSection(root, "logger", shared.Logger)
		if err != nil {
			return nil, err
		}
	}
	if _, ok := root["redis"]; ok && len(shared.Redis) > 0 {
		root, err = mergeSection(root, "redis", shared.Redis)
		if err != nil {
			return nil, err
		}
	}
	return root, nil
}

func mergeSection(root map[string]interface{}, key string, section map[string]interface{}) (map[string]interface{}, error) {
	merged, err := mergeMap(root, map[string]interface{}{key: normalizeValue(section)})
	if err != nil {
		return nil, err
	}
	return merged.(map[string]interface{}), nil
}
