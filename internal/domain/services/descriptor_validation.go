// Package services implements domain logic that does not depend on external systems.
package services

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sbuilder/yessfish-builds/internal/domain/entities"
)

// Severity classifies a validation issue
type Severity string

// Issue severities
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single finding about a descriptor
type Issue struct {
	Severity Severity
	Field    string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Field, i.Message)
}

// ValidationReport is the result of validating one descriptor revision
type ValidationReport struct {
	Descriptor string
	Issues     []Issue
}

// Valid reports whether the descriptor has no error-severity issues
func (r *ValidationReport) Valid() bool {
	return len(r.Errors()) == 0
}

// Errors returns the error-severity issues
func (r *ValidationReport) Errors() []Issue {
	return r.filter(SeverityError)
}

// Warnings returns the warning-severity issues
func (r *ValidationReport) Warnings() []Issue {
	return r.filter(SeverityWarning)
}

func (r *ValidationReport) filter(s Severity) []Issue {
	out := make([]Issue, 0)
	for _, issue := range r.Issues {
		if issue.Severity == s {
			out = append(out, issue)
		}
	}
	return out
}

func (r *ValidationReport) add(s Severity, field, format string, args ...interface{}) {
	r.Issues = append(r.Issues, Issue{Severity: s, Field: field, Message: fmt.Sprintf(format, args...)})
}

// SupportedABIs lists the Android ABIs the NDK can package
var SupportedABIs = map[string]bool{
	"armeabi-v7a": true,
	"arm64-v8a":   true,
	"x86":         true,
	"x86_64":      true,
}

var javaPackagePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*(\.[a-zA-Z][a-zA-Z0-9_]*)+$`)

// DescriptorValidator checks internal consistency of build descriptors
type DescriptorValidator struct {
	// keystoreBaseDir, when set, enables checking that keystore files exist
	keystoreBaseDir string
}

// NewDescriptorValidator creates a validator that does not touch the filesystem
func NewDescriptorValidator() *DescriptorValidator {
	return &DescriptorValidator{}
}

// NewDescriptorValidatorWithKeystoreCheck creates a validator that also resolves
// keystore files relative to baseDir
func NewDescriptorValidatorWithKeystoreCheck(baseDir string) *DescriptorValidator {
	return &DescriptorValidator{keystoreBaseDir: baseDir}
}

// Validate runs all consistency checks on a descriptor
func (v *DescriptorValidator) Validate(def *entities.Descriptor) *ValidationReport {
	report := &ValidationReport{Descriptor: def.Name, Issues: make([]Issue, 0)}

	if !javaPackagePattern.MatchString(def.ApplicationID) {
		report.add(SeverityError, "application_id", "%q is not a valid application id", def.ApplicationID)
	}

	v.checkABIs(def, report)
	v.checkSDK(def, report)
	v.checkSigning(def, report)
	v.checkBuildTypes(def, report)

	return report
}

// ValidateAll validates every revision and reports whether all are valid
func (v *DescriptorValidator) ValidateAll(defs []*entities.Descriptor) ([]*ValidationReport, bool) {
	reports := make([]*ValidationReport, 0, len(defs))
	ok := true
	for _, def := range defs {
		r := v.Validate(def)
		if !r.Valid() {
			ok = false
		}
		reports = append(reports, r)
	}
	return reports, ok
}

func (v *DescriptorValidator) checkABIs(def *entities.Descriptor, report *ValidationReport) {
	if len(def.ABIFilters) == 0 {
		report.add(SeverityError, "ndk.abi_filters", "ABI filter list must not be empty")
		return
	}

	seen := make(map[string]bool, len(def.ABIFilters))
	for _, abi := range def.ABIFilters {
		if !SupportedABIs[abi] {
			report.add(SeverityError, "ndk.abi_filters", "unknown ABI %q", abi)
		}
		if seen[abi] {
			report.add(SeverityWarning, "ndk.abi_filters", "duplicate ABI %q", abi)
		}
		seen[abi] = true
	}
}

func (v *DescriptorValidator) checkSDK(def *entities.Descriptor, report *ValidationReport) {
	levels := []struct {
		field string
		raw   string
	}{
		{"sdk.min", def.SDK.Min},
		{"sdk.target", def.SDK.Target},
		{"sdk.compile", def.SDK.Compile},
	}
	parsed := make(map[string]int, len(levels))
	for _, l := range levels {
		if l.raw == entities.SDKInherited {
			continue
		}
		n, err := strconv.Atoi(l.raw)
		if err != nil || n <= 0 {
			report.add(SeverityError, l.field, "%q is neither a positive API level nor %q", l.raw, entities.SDKInherited)
			continue
		}
		parsed[l.field] = n
	}

	minLevel, hasMin := parsed["sdk.min"]
	target, hasTarget := parsed["sdk.target"]
	compile, hasCompile := parsed["sdk.compile"]
	if hasMin && hasTarget && minLevel > target {
		report.add(SeverityError, "sdk.min", "min SDK %d is above target SDK %d", minLevel, target)
	}
	if hasTarget && hasCompile && target > compile {
		report.add(SeverityError, "sdk.target", "target SDK %d is above compile SDK %d", target, compile)
	}
}

func (v *DescriptorValidator) checkSigning(def *entities.Descriptor, report *ValidationReport) {
	for _, name := range sortedKeys(def.SigningConfigs) {
		sc := def.SigningConfigs[name]
		field := "signing_configs." + name

		if strings.TrimSpace(sc.KeyAlias) == "" {
			report.add(SeverityError, field+".key_alias", "key alias is required")
		}
		if strings.TrimSpace(sc.StoreFile) == "" {
			report.add(SeverityError, field+".store_file", "keystore file is required")
		} else if v.keystoreBaseDir != "" {
			path := sc.StoreFile
			if !filepath.IsAbs(path) {
				path = filepath.Join(v.keystoreBaseDir, path)
			}
			if _, err := os.Stat(path); err != nil {
				report.add(SeverityError, field+".store_file", "keystore %s not found", path)
			}
		}

		checkCredential(report, field+".key_password", sc.KeyPassword)
		checkCredential(report, field+".store_password", sc.StorePassword)
	}
}

func checkCredential(report *ValidationReport, field string, c entities.Credential) {
	switch {
	case c.Value == "" && c.EnvRef != "":
		report.add(SeverityError, field, "environment variable %s is not set", c.EnvRef)
	case c.Value == "":
		report.add(SeverityError, field, "password is required")
	case c.IsPlaintext():
		report.add(SeverityWarning, field, "plaintext credential, use a ${VAR} reference")
	}
}

func (v *DescriptorValidator) checkBuildTypes(def *entities.Descriptor, report *ValidationReport) {
	if _, ok := def.BuildTypes[entities.ReleaseBuildType]; !ok {
		report.add(SeverityWarning, "build_types", "no %q build type declared", entities.ReleaseBuildType)
	}

	for _, name := range sortedKeys(def.BuildTypes) {
		bt := def.BuildTypes[name]
		field := "build_types." + name

		if bt.SigningConfig != "" {
			if _, ok := def.SigningConfigs[bt.SigningConfig]; !ok {
				report.add(SeverityError, field+".signing_config",
					"references undeclared signing config %q", bt.SigningConfig)
			}
		} else if name == entities.ReleaseBuildType {
			report.add(SeverityWarning, field+".signing_config", "release build is unsigned")
		}

		if bt.ShrinkResources && !bt.MinifyEnabled {
			report.add(SeverityError, field+".shrink_resources", "resource shrinking requires minify to be enabled")
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
