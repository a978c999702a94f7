// Package yaml provides YAML-based descriptor parsing and repository implementations.
package yaml

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/sbuilder/yessfish-builds/internal/domain/entities"
	"gopkg.in/yaml.v3"
)

// yamlDescriptor represents the raw YAML structure
type yamlDescriptor struct {
	Name                  string                       `yaml:"name"`
	Namespace             string                       `yaml:"namespace"`
	ApplicationID         string                       `yaml:"application_id"`
	SDK                   yamlSDK                      `yaml:"sdk"`
	JavaVersion           int                          `yaml:"java_version"`
	CoreLibraryDesugaring bool                         `yaml:"core_library_desugaring"`
	SigningConfigs        map[string]yamlSigningConfig `yaml:"signing_configs"`
	NDK                   yamlNDK                      `yaml:"ndk"`
	BuildTypes            map[string]yamlBuildType     `yaml:"build_types"`
	FlutterSource         string                       `yaml:"flutter_source"`
	Dependencies          []string                     `yaml:"dependencies"`
}

type yamlSDK struct {
	Compile sdkLevel `yaml:"compile"`
	Min     sdkLevel `yaml:"min"`
	Target  sdkLevel `yaml:"target"`
	NDK     sdkLevel `yaml:"ndk"`
}

type yamlSigningConfig struct {
	KeyAlias      string `yaml:"key_alias"`
	KeyPassword   string `yaml:"key_password"`
	StoreFile     string `yaml:"store_file"`
	StorePassword string `yaml:"store_password"`
}

type yamlNDK struct {
	ABIFilters []string `yaml:"abi_filters"`
}

type yamlBuildType struct {
	SigningConfig   string   `yaml:"signing_config"`
	Minify          bool     `yaml:"minify"`
	ShrinkResources bool     `yaml:"shrink_resources"`
	ProguardFiles   []string `yaml:"proguard_files"`
}

// sdkLevel accepts both numeric levels and the "flutter" keyword
type sdkLevel string

func (s *sdkLevel) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: sdk level must be a number or %q", value.Line, entities.SDKInherited)
	}
	*s = sdkLevel(value.Value)
	return nil
}

var envRefPattern = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// DescriptorParser parses YAML build descriptors
type DescriptorParser struct {
	lookupEnv func(string) (string, bool)
}

// NewDescriptorParser creates a new YAML parser that resolves ${VAR} credentials from the process environment
func NewDescriptorParser() *DescriptorParser {
	return &DescriptorParser{lookupEnv: os.LookupEnv}
}

// NewDescriptorParserWithEnv creates a parser that resolves credentials through lookup
func NewDescriptorParserWithEnv(lookup func(string) (string, bool)) *DescriptorParser {
	return &DescriptorParser{lookupEnv: lookup}
}

// ParseFile parses a YAML descriptor file into a Descriptor entity
func (p *DescriptorParser) ParseFile(filePath string) (*entities.Descriptor, error) {
	//nolint:gosec // G304: filePath is a descriptor path from the repository
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	return p.Parse(data)
}

// Parse parses YAML bytes into a Descriptor entity
func (p *DescriptorParser) Parse(data []byte) (*entities.Descriptor, error) {
	var raw yamlDescriptor
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if raw.ApplicationID == "" {
		return nil, fmt.Errorf("descriptor must have an application_id")
	}

	namespace := raw.Namespace
	if namespace == "" {
		namespace = raw.ApplicationID
	}

	signing := make(map[string]entities.SigningConfig, len(raw.SigningConfigs))
	for name, sc := range raw.SigningConfigs {
		signing[name] = entities.SigningConfig{
			KeyAlias:      sc.KeyAlias,
			KeyPassword:   p.credential(sc.KeyPassword),
			StoreFile:     sc.StoreFile,
			StorePassword: p.credential(sc.StorePassword),
		}
	}

	buildTypes := make(map[string]entities.BuildType, len(raw.BuildTypes))
	for name, bt := range raw.BuildTypes {
		buildTypes[name] = entities.BuildType{
			SigningConfig:   bt.SigningConfig,
			MinifyEnabled:   bt.Minify,
			ShrinkResources: bt.ShrinkResources,
			ProguardFiles:   bt.ProguardFiles,
		}
	}

	return &entities.Descriptor{
		Name:                  raw.Name,
		Namespace:             namespace,
		ApplicationID:         raw.ApplicationID,
		SDK:                   convertSDK(raw.SDK),
		JavaVersion:           raw.JavaVersion,
		CoreLibraryDesugaring: raw.CoreLibraryDesugaring,
		SigningConfigs:        signing,
		ABIFilters:            raw.NDK.ABIFilters,
		BuildTypes:            buildTypes,
		FlutterSource:         raw.FlutterSource,
		Dependencies:          raw.Dependencies,
	}, nil
}

func (p *DescriptorParser) credential(raw string) entities.Credential {
	m := envRefPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return entities.Credential{Value: raw}
	}
	value, _ := p.lookupEnv(m[1])
	return entities.Credential{Value: value, EnvRef: m[1]}
}

func convertSDK(ys yamlSDK) entities.SDKConfig {
	level := func(l sdkLevel) string {
		if l == "" {
			return entities.SDKInherited
		}
		return string(l)
	}
	return entities.SDKConfig{
		Compile: level(ys.Compile),
		Min:     level(ys.Min),
		Target:  level(ys.Target),
		NDK:     level(ys.NDK),
	}
}
