// Package entities defines core domain models and data structures.
package entities

import "strings"

// SDKInherited marks an SDK level that is taken from the Flutter tooling
const SDKInherited = "flutter"

// Descriptor represents one revision of the Android build descriptor
type Descriptor struct {
	Name                  string
	Namespace             string
	ApplicationID         string
	SDK                   SDKConfig
	JavaVersion           int
	CoreLibraryDesugaring bool
	SigningConfigs        map[string]SigningConfig
	ABIFilters            []string
	BuildTypes            map[string]BuildType
	FlutterSource         string
	Dependencies          []string
}

// SDKConfig holds the SDK levels. Each value is either a number or SDKInherited.
type SDKConfig struct {
	Compile string
	Min     string
	Target  string
	NDK     string
}

// Credential is a signing secret together with how it was declared
type Credential struct {
	Value string
	// EnvRef is the variable name when the value came from a ${VAR} reference
	EnvRef string
}

// IsPlaintext reports whether the secret was written literally into the descriptor
func (c Credential) IsPlaintext() bool {
	return c.EnvRef == "" && c.Value != ""
}

// Masked returns a printable form that never reveals the secret
func (c Credential) Masked() string {
	switch {
	case c.EnvRef != "":
		return "${" + c.EnvRef + "}"
	case c.Value == "":
		return ""
	default:
		return strings.Repeat("*", 8)
	}
}

// SigningConfig represents the credential set used to sign a build
type SigningConfig struct {
	KeyAlias      string
	KeyPassword   Credential
	StoreFile     string
	StorePassword Credential
}

// BuildType represents build-type specific packaging options
type BuildType struct {
	SigningConfig   string
	MinifyEnabled   bool
	ShrinkResources bool
	ProguardFiles   []string
}

// ReleaseBuildType is the build type used for distributed builds
const ReleaseBuildType = "release"

// SigningConfigFor returns the signing config referenced by a build type
func (d *Descriptor) SigningConfigFor(buildType string) (SigningConfig, bool) {
	bt, ok := d.BuildTypes[buildType]
	if !ok || bt.SigningConfig == "" {
		return SigningConfig{}, false
	}
	sc, ok := d.SigningConfigs[bt.SigningConfig]
	return sc, ok
}
