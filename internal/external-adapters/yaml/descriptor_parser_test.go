package yaml

import (
	"testing"
)

const releaseDescriptor = `name: release
namespace: nl.sbuilder.yessfish_flutter_app
application_id: nl.sbuilder.yessfish_flutter_app
sdk:
  compile: 35
  min: flutter
java_version: 11
core_library_desugaring: true
signing_configs:
  release:
    key_alias: yessfish
    key_password: ${TEST_KEY_PASSWORD}
    store_file: yessfish-release.jks
    store_password: hunter2
ndk:
  abi_filters:
    - arm64-v8a
build_types:
  release:
    signing_config: release
    minify: true
    shrink_resources: true
    proguard_files:
      - proguard-android-optimize.txt
      - proguard-rules.pro
`

func testEnv(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestDescriptorParser_Parse_Valid(t *testing.T) {
	parser := NewDescriptorParserWithEnv(testEnv(map[string]string{"TEST_KEY_PASSWORD": "s3cret"}))

	def, err := parser.Parse([]byte(releaseDescriptor))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if def.ApplicationID != "nl.sbuilder.yessfish_flutter_app" {
		t.Errorf("ApplicationID = %v, want nl.sbuilder.yessfish_flutter_app", def.ApplicationID)
	}
	if def.SDK.Compile != "35" {
		t.Errorf("SDK.Compile = %q, want 35", def.SDK.Compile)
	}
	if def.SDK.Min != "flutter" || def.SDK.Target != "flutter" {
		t.Errorf("SDK.Min/Target = %q/%q, want flutter/flutter", def.SDK.Min, def.SDK.Target)
	}
	if len(def.ABIFilters) != 1 || def.ABIFilters[0] != "arm64-v8a" {
		t.Errorf("ABIFilters = %v, want [arm64-v8a]", def.ABIFilters)
	}

	bt, ok := def.BuildTypes["release"]
	if !ok {
		t.Fatal("release build type missing")
	}
	if !bt.MinifyEnabled || !bt.ShrinkResources {
		t.Errorf("release minify/shrink = %v/%v, want true/true", bt.MinifyEnabled, bt.ShrinkResources)
	}
	if len(bt.ProguardFiles) != 2 {
		t.Errorf("ProguardFiles count = %d, want 2", len(bt.ProguardFiles))
	}

	sc, ok := def.SigningConfigFor("release")
	if !ok {
		t.Fatal("SigningConfigFor(release) not found")
	}
	if sc.KeyAlias != "yessfish" {
		t.Errorf("KeyAlias = %v, want yessfish", sc.KeyAlias)
	}
	if sc.KeyPassword.Value != "s3cret" || sc.KeyPassword.EnvRef != "TEST_KEY_PASSWORD" {
		t.Errorf("KeyPassword = %+v, want env-resolved s3cret", sc.KeyPassword)
	}
	if sc.KeyPassword.IsPlaintext() {
		t.Error("env-referenced password should not be plaintext")
	}
	if !sc.StorePassword.IsPlaintext() {
		t.Error("literal store password should be plaintext")
	}
}

func TestDescriptorParser_Parse_DefaultsNamespaceAndSDK(t *testing.T) {
	parser := NewDescriptorParserWithEnv(testEnv(nil))

	def, err := parser.Parse([]byte("application_id: com.example.app\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if def.Namespace != "com.example.app" {
		t.Errorf("Namespace = %q, want application id", def.Namespace)
	}
	if def.SDK.Compile != "flutter" {
		t.Errorf("SDK.Compile = %q, want flutter", def.SDK.Compile)
	}
}

func TestDescriptorParser_Parse_UnsetEnvReference(t *testing.T) {
	parser := NewDescriptorParserWithEnv(testEnv(nil))

	def, err := parser.Parse([]byte(`application_id: com.example.app
signing_configs:
  release:
    key_password: ${MISSING}
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	pw := def.SigningConfigs["release"].KeyPassword
	if pw.Value != "" || pw.EnvRef != "MISSING" {
		t.Errorf("KeyPassword = %+v, want empty value with EnvRef MISSING", pw)
	}
}

func TestDescriptorParser_Parse_MissingApplicationID(t *testing.T) {
	parser := NewDescriptorParser()

	_, err := parser.Parse([]byte("name: release\n"))
	if err == nil {
		t.Fatal("Parse() should return error for missing application_id")
	}
	if err.Error() != "descriptor must have an application_id" {
		t.Errorf("Parse() error = %v, want 'descriptor must have an application_id'", err)
	}
}

func TestDescriptorParser_Parse_InvalidYAML(t *testing.T) {
	parser := NewDescriptorParser()

	_, err := parser.Parse([]byte("application_id: x\n  invalid: [broken yaml\n"))
	if err == nil {
		t.Error("Parse() should return error for invalid YAML")
	}
}

func TestDescriptorParser_Parse_NonScalarSDKLevel(t *testing.T) {
	parser := NewDescriptorParser()

	_, err := parser.Parse([]byte("application_id: x.y\nsdk:\n  min: [21]\n"))
	if err == nil {
		t.Error("Parse() should reject a list as sdk level")
	}
}
