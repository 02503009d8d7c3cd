package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleYAML = `
operations:
  - name: SubscribeToConfigurationUpdate
    service: aws.greengrass
    event: ConfigurationUpdateEvents
    errors:
      ServiceError: INVALID
      ResourceNotFoundError: NOENTRY
  - name: UpdateState
    service: aws.greengrass
  - name: GetSystemConfig
    service: aws.greengrass.private
    export: PrivateGetSystemConfig
`

func mustContain(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Errorf("output missing %q\n---\n%s", substr, output)
	}
}

func generateSample(t *testing.T) string {
	t.Helper()
	defs, err := ParseOperations([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("ParseOperations failed: %v", err)
	}
	output, err := Generate("ipc", "operations.yaml", defs)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return output
}

func TestGenerateHeader(t *testing.T) {
	output := generateSample(t)
	mustContain(t, output, "// Code generated by ggipc-opgen from operations.yaml. DO NOT EDIT.")
	mustContain(t, output, "package ipc")
}

func TestGenerateStreamingOperation(t *testing.T) {
	output := generateSample(t)
	mustContain(t, output, "var OpSubscribeToConfigurationUpdate = Operation{")
	mustContain(t, output, `Name: "aws.greengrass#SubscribeToConfigurationUpdate",`)
	mustContain(t, output, `RequestType: "aws.greengrass#SubscribeToConfigurationUpdateRequest",`)
	mustContain(t, output, `EventType: "aws.greengrass#ConfigurationUpdateEvents",`)
}

func TestGenerateErrorTableKeepsOrder(t *testing.T) {
	output := generateSample(t)
	first := strings.Index(output, `"ServiceError": ggerr.Invalid,`)
	second := strings.Index(output, `"ResourceNotFoundError": ggerr.Noentry,`)
	if first < 0 || second < 0 || first > second {
		t.Errorf("error codes out of order\n%s", output)
	}
}

func TestGenerateUnaryOperation(t *testing.T) {
	output := generateSample(t)
	start := strings.Index(output, "var OpUpdateState")
	end := strings.Index(output[start:], "\n}\n")
	block := output[start : start+end]
	if strings.Contains(block, "EventType") || strings.Contains(block, "Codes") {
		t.Errorf("unary operation without errors should be minimal:\n%s", block)
	}
	mustContain(t, block, "Fallback: ggerr.Failure,")
}

func TestGenerateExportName(t *testing.T) {
	output := generateSample(t)
	mustContain(t, output, "var OpPrivateGetSystemConfig = Operation{")
	mustContain(t, output, `Name: "aws.greengrass.private#GetSystemConfig",`)
	mustContain(t, output, "\tOpPrivateGetSystemConfig,\n}")
}

func TestParseOperationsRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "operations: []"},
		{"missing service", "operations:\n  - name: X\n"},
		{"duplicate", "operations:\n  - {name: X, service: s}\n  - {name: X, service: t}\n"},
		{"bad yaml", "operations: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseOperations([]byte(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestErrorMappingsRejectUnknownKind(t *testing.T) {
	defs, err := ParseOperations([]byte("operations:\n  - name: X\n    service: s\n    errors:\n      Boom: KABOOM\n"))
	if err != nil {
		t.Fatalf("ParseOperations failed: %v", err)
	}
	if _, err := Generate("ipc", "x.yaml", defs); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestKindConst(t *testing.T) {
	defs, _ := ParseOperations([]byte(sampleYAML))
	errs, err := defs.Operations[0].ErrorMappings()
	if err != nil {
		t.Fatalf("ErrorMappings failed: %v", err)
	}
	if got := kindConst(errs[1].Kind); got != "ggerr.Noentry" {
		t.Errorf("kindConst = %s", got)
	}
}

// TestCheckedInFileIsCurrent regenerates the ipc operation table and
// compares it with the checked-in copy.
func TestCheckedInFileIsCurrent(t *testing.T) {
	root := filepath.Join("..", "..", "pkg", "ipc")
	out := filepath.Join(t.TempDir(), "operations_gen.go")
	if err := run(filepath.Join(root, "operations.yaml"), out, "ipc"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want, err := os.ReadFile(filepath.Join(root, "operations_gen.go"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Errorf("pkg/ipc/operations_gen.go is stale; rerun ggipc-opgen")
	}
}
