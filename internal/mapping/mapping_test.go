package mapping

import (
	"bytes"
	"strings"
	"testing"

	"dvh/internal/dvherr"
)

const clientSample = `com.example.Original -> a:
    int fieldOne -> b
    void methodOne(int) -> c
    void methodOne(com.example.Other) -> c
com.example.Other -> d:
    int fieldTwo -> e
`

const serverSample = `com.example.Original -> a:
    int fieldOne -> b
    void methodOne(int) -> c
`

func TestParseAndReverse(t *testing.T) {
	m, err := Parse(strings.NewReader(clientSample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m.Classes) != 2 {
		t.Fatalf("expected 2 classes, got %d", len(m.Classes))
	}

	rev := m.Reverse()
	cm, ok := rev.Class("a")
	if !ok {
		t.Fatalf("expected reversed mapping keyed by obfuscated name %q", "a")
	}
	if cm.Mapped != "com.example.Original" {
		t.Errorf("expected reversed mapped name to be original deobf name, got %q", cm.Mapped)
	}
	if len(cm.Fields) != 1 || cm.Fields[0].OriginalName != "b" || cm.Fields[0].MappedName != "fieldOne" {
		t.Errorf("unexpected reversed field: %+v", cm.Fields)
	}
}

func TestCheckSupersetPasses(t *testing.T) {
	client, err := Parse(strings.NewReader(clientSample))
	if err != nil {
		t.Fatalf("Parse client: %v", err)
	}
	server, err := Parse(strings.NewReader(serverSample))
	if err != nil {
		t.Fatalf("Parse server: %v", err)
	}
	if err := CheckSuperset(client.Reverse(), server.Reverse()); err != nil {
		t.Errorf("expected superset check to pass, got %v", err)
	}
}

func TestCheckSupersetFailsOnMissingField(t *testing.T) {
	client, _ := Parse(strings.NewReader(`com.example.Original -> a:
`))
	server, _ := Parse(strings.NewReader(serverSample))

	err := CheckSuperset(client.Reverse(), server.Reverse())
	if err == nil {
		t.Fatal("expected superset check to fail when client is missing a server field")
	}
	de, ok := dvherr.As(err)
	if !ok || de.Kind != dvherr.MappingMismatch {
		t.Errorf("expected MappingMismatch, got %v", err)
	}
}

func TestMappedDescriptorRemapsClassTypes(t *testing.T) {
	m, err := Parse(strings.NewReader(clientSample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cm, ok := m.Class("com.example.Original")
	if !ok {
		t.Fatalf("expected class com.example.Original")
	}

	var overload *MethodMapping
	for i := range cm.Methods {
		if strings.Contains(cm.Methods[i].OriginalDescriptor, "com.example.Other") {
			overload = &cm.Methods[i]
		}
	}
	if overload == nil {
		t.Fatalf("expected a methodOne(com.example.Other) overload")
	}
	if overload.MappedDescriptor != "void (d)" {
		t.Errorf("expected com.example.Other remapped to its obfuscated name d in the mapped descriptor, got %q", overload.MappedDescriptor)
	}
}

func TestCheckSupersetDistinguishesOverloadsBySameMappedName(t *testing.T) {
	client, err := Parse(strings.NewReader(clientSample))
	if err != nil {
		t.Fatalf("Parse client: %v", err)
	}
	server, err := Parse(strings.NewReader(serverSample))
	if err != nil {
		t.Fatalf("Parse server: %v", err)
	}
	// Both of client's methodOne overloads map to the obfuscated name "c";
	// the superset check must still treat them as distinct members keyed
	// on descriptor, not collapse them because the mapped name matches.
	if err := CheckSuperset(client.Reverse(), server.Reverse()); err != nil {
		t.Errorf("expected superset check to pass despite same-named overloads, got %v", err)
	}
}

func TestCheckSupersetFailsOnOverloadDescriptorMismatch(t *testing.T) {
	client, err := Parse(strings.NewReader(`com.example.Original -> a:
    void methodOne(int) -> c
`))
	if err != nil {
		t.Fatalf("Parse client: %v", err)
	}
	server, err := Parse(strings.NewReader(`com.example.Original -> a:
    void methodOne(boolean) -> c
`))
	if err != nil {
		t.Fatalf("Parse server: %v", err)
	}

	err = CheckSuperset(client.Reverse(), server.Reverse())
	if err == nil {
		t.Fatal("expected superset check to fail: server has a methodOne(boolean) overload client lacks, even though both share the mapped name c")
	}
	de, ok := dvherr.As(err)
	if !ok || de.Kind != dvherr.MappingMismatch {
		t.Errorf("expected MappingMismatch, got %v", err)
	}
}

func TestWriteTSRG2IsSortedAndTabIndented(t *testing.T) {
	m, err := Parse(strings.NewReader(clientSample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var buf bytes.Buffer
	if err := m.Reverse().WriteTSRG2(&buf); err != nil {
		t.Fatalf("WriteTSRG2: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "tsrg2 ") {
		t.Errorf("expected tsrg2 header, got %q", out[:20])
	}
	if !strings.Contains(out, "a com.example.Original") || !strings.Contains(out, "d com.example.Other") {
		t.Errorf("expected both reversed class lines present, got %q", out)
	}
}

func TestMergeMissingSideIsMappingMissing(t *testing.T) {
	_, err := Merge("/nonexistent/client.txt", "/nonexistent/server.txt")
	if err == nil {
		t.Fatal("expected MappingMissing error")
	}
	de, ok := dvherr.As(err)
	if !ok || de.Kind != dvherr.MappingMissing {
		t.Errorf("expected MappingMissing, got %v", err)
	}
}
