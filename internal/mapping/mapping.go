// Package mapping implements the mapping engine (spec.md §4.6): parsing
// the per-side ProGuard-style name mappings, reversing them to the
// canonical deobf->obf direction, verifying the client/server superset
// invariant, and writing the merged result in TSRG2 form.
package mapping

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"dvh/internal/dvherr"
)

// FieldMapping is one field entry under a class mapping block, keyed by
// its original and mapped descriptor for the superset comparison
// (spec.md §4.6).
type FieldMapping struct {
	OriginalDescriptor string
	MappedDescriptor   string
	OriginalName       string
	MappedName         string
}

// MethodMapping is one method entry under a class mapping block, keyed by
// its original and mapped descriptor for the superset comparison
// (spec.md §4.6).
type MethodMapping struct {
	OriginalDescriptor string
	MappedDescriptor   string
	OriginalName       string
	MappedName         string
}

// ClassMapping is one "original -> mapped:" block and its members.
type ClassMapping struct {
	Original string
	Mapped   string
	Fields   []FieldMapping
	Methods  []MethodMapping
}

// Mappings is a parsed side mapping: every class block, direction as
// parsed (original -> mapped) until Reverse is called.
type Mappings struct {
	Classes    []ClassMapping
	byOriginal map[string]*ClassMapping
}

// Parse reads a ProGuard-style mapping file: "original -> mapped:"
// class headers followed by indented "type original -> mapped" field
// lines and "type original(args) -> mapped" method lines.
func Parse(r io.Reader) (*Mappings, error) {
	m := &Mappings{byOriginal: make(map[string]*ClassMapping)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var current *ClassMapping
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		if strings.TrimSpace(raw) == "" || strings.HasPrefix(strings.TrimSpace(raw), "#") {
			continue
		}

		if !strings.HasPrefix(raw, " ") && !strings.HasPrefix(raw, "\t") {
			orig, mapped, err := splitArrow(strings.TrimSuffix(strings.TrimSpace(raw), ":"))
			if err != nil {
				return nil, fmt.Errorf("line %d: class header: %w", lineNo, err)
			}
			cm := ClassMapping{Original: orig, Mapped: mapped}
			m.Classes = append(m.Classes, cm)
			current = &m.Classes[len(m.Classes)-1]
			m.byOriginal[orig] = current
			continue
		}

		if current == nil {
			return nil, fmt.Errorf("line %d: member line before any class header", lineNo)
		}
		if err := parseMember(current, strings.TrimSpace(raw)); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning mapping file: %w", err)
	}
	m.computeMappedDescriptors()
	return m, nil
}

// ParseFile opens and parses a mapping file from path.
func ParseFile(path string) (*Mappings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func splitArrow(s string) (string, string, error) {
	idx := strings.Index(s, "->")
	if idx < 0 {
		return "", "", fmt.Errorf("missing '->' in %q", s)
	}
	return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+2:]), nil
}

func parseMember(cm *ClassMapping, line string) error {
	orig, mapped, err := splitArrow(line)
	if err != nil {
		return err
	}
	// orig is either "type name" (field) or "type name(args)" (method).
	sp := strings.LastIndexAny(orig, " ")
	if sp < 0 {
		return fmt.Errorf("malformed member %q", line)
	}
	typ := strings.TrimSpace(orig[:sp])
	name := strings.TrimSpace(orig[sp+1:])

	if strings.Contains(name, "(") {
		open := strings.Index(name, "(")
		methodName := name[:open]
		args := name[open:]
		cm.Methods = append(cm.Methods, MethodMapping{
			OriginalDescriptor: typ + " " + args,
			OriginalName:       methodName,
			MappedName:         mapped,
		})
		return nil
	}

	cm.Fields = append(cm.Fields, FieldMapping{
		OriginalDescriptor: typ,
		OriginalName:       name,
		MappedName:         mapped,
	})
	return nil
}

// computeMappedDescriptors fills in MappedDescriptor on every field and
// method by remapping each class-type component of its original
// descriptor through the file's own class rename table. A component that
// isn't itself a mapped class (a primitive, or a type this mapping file
// doesn't rename) passes through unchanged, matching srgutils'
// IMappingFile.getMappedDescriptor() behavior the merge stage relies on.
func (m *Mappings) computeMappedDescriptors() {
	for i := range m.Classes {
		cm := &m.Classes[i]
		for j := range cm.Fields {
			f := &cm.Fields[j]
			f.MappedDescriptor = remapType(f.OriginalDescriptor, m.byOriginal)
		}
		for j := range cm.Methods {
			me := &cm.Methods[j]
			me.MappedDescriptor = remapMethodDescriptor(me.OriginalDescriptor, m.byOriginal)
		}
	}
}

// remapType rewrites a single Java source-style type (e.g. "int",
// "java.util.List", "com.example.Foo[]") through classes, substituting
// the mapped class name for any array-stripped base type present in the
// table and leaving anything else (primitives, unmapped types) as-is.
func remapType(t string, classes map[string]*ClassMapping) string {
	base := t
	suffix := ""
	for strings.HasSuffix(base, "[]") {
		suffix += "[]"
		base = strings.TrimSuffix(base, "[]")
	}
	if cm, ok := classes[base]; ok {
		return cm.Mapped + suffix
	}
	return t
}

// remapMethodDescriptor rewrites a method's "returnType (arg,arg,...)"
// original descriptor into its mapped form, remapping the return type and
// every argument type independently via remapType.
func remapMethodDescriptor(desc string, classes map[string]*ClassMapping) string {
	sp := strings.Index(desc, "(")
	if sp < 0 {
		return desc
	}
	returnType := strings.TrimSpace(desc[:sp])
	args := strings.TrimSuffix(strings.TrimPrefix(desc[sp:], "("), ")")

	mappedReturn := remapType(returnType, classes)

	var mappedArgs []string
	if args != "" {
		for _, a := range strings.Split(args, ",") {
			mappedArgs = append(mappedArgs, remapType(strings.TrimSpace(a), classes))
		}
	}
	return mappedReturn + " (" + strings.Join(mappedArgs, ",") + ")"
}

// Reverse returns a new Mappings with Original/Mapped swapped on every
// class, field, and method — the canonical deobf->obf direction per
// spec.md §4.6, when the parsed side mapping's original names are the
// deobfuscated (human-readable) identifiers.
func (m *Mappings) Reverse() *Mappings {
	out := &Mappings{byOriginal: make(map[string]*ClassMapping, len(m.Classes))}
	for _, cm := range m.Classes {
		rev := ClassMapping{Original: cm.Mapped, Mapped: cm.Original}
		for _, f := range cm.Fields {
			rev.Fields = append(rev.Fields, FieldMapping{
				OriginalDescriptor: f.MappedDescriptor,
				MappedDescriptor:   f.OriginalDescriptor,
				OriginalName:       f.MappedName,
				MappedName:         f.OriginalName,
			})
		}
		for _, me := range cm.Methods {
			rev.Methods = append(rev.Methods, MethodMapping{
				OriginalDescriptor: me.MappedDescriptor,
				MappedDescriptor:   me.OriginalDescriptor,
				OriginalName:       me.MappedName,
				MappedName:         me.OriginalName,
			})
		}
		out.Classes = append(out.Classes, rev)
		out.byOriginal[rev.Original] = &out.Classes[len(out.Classes)-1]
	}
	return out
}

// Class looks up a class mapping block by its original name.
func (m *Mappings) Class(original string) (*ClassMapping, bool) {
	cm, ok := m.byOriginal[original]
	return cm, ok
}

// WriteTSRG2 writes the mapping in the canonical TSRG2 form consumed by
// the remap tool: a "tsrg2" header line, then one unindented
// "original mapped" line per class followed by its indented field and
// method lines, all sorted for determinism.
func (m *Mappings) WriteTSRG2(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, "tsrg2 left right"); err != nil {
		return err
	}

	classes := make([]ClassMapping, len(m.Classes))
	copy(classes, m.Classes)
	sort.Slice(classes, func(i, j int) bool { return classes[i].Original < classes[j].Original })

	for _, cm := range classes {
		if _, err := fmt.Fprintf(bw, "%s %s\n", cm.Original, cm.Mapped); err != nil {
			return err
		}

		fields := append([]FieldMapping(nil), cm.Fields...)
		sort.Slice(fields, func(i, j int) bool { return fields[i].OriginalName < fields[j].OriginalName })
		for _, f := range fields {
			if _, err := fmt.Fprintf(bw, "\t%s %s\n", f.OriginalName, f.MappedName); err != nil {
				return err
			}
		}

		methods := append([]MethodMapping(nil), cm.Methods...)
		sort.Slice(methods, func(i, j int) bool {
			return methods[i].OriginalName+methods[i].OriginalDescriptor < methods[j].OriginalName+methods[j].OriginalDescriptor
		})
		for _, me := range methods {
			if _, err := fmt.Fprintf(bw, "\t%s %s %s\n", me.OriginalDescriptor, me.OriginalName, me.MappedName); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// CheckSuperset verifies that client is a strict superset of server per
// spec.md §4.6: for every class in server there must exist a class in
// client with the same original and mapped names, whose field and method
// sets (compared by original descriptor -> mapped descriptor) are
// supersets of server's.
func CheckSuperset(client, server *Mappings) error {
	for _, sc := range server.Classes {
		cc, ok := client.byOriginal[sc.Original]
		if !ok {
			return dvherr.Newf(dvherr.MappingMismatch, "class %s present in server mapping but absent from client mapping", sc.Original)
		}
		if cc.Mapped != sc.Mapped {
			return dvherr.Newf(dvherr.MappingMismatch, "class %s maps to %s in server but %s in client", sc.Original, sc.Mapped, cc.Mapped)
		}

		clientFields := fieldKeySet(cc.Fields)
		for _, f := range sc.Fields {
			if _, ok := clientFields[fieldKey(f)]; !ok {
				return dvherr.Newf(dvherr.MappingMismatch, "field %s.%s %s -> %s %s present in server but not client", sc.Original, f.OriginalName, f.OriginalDescriptor, f.MappedName, f.MappedDescriptor)
			}
		}

		clientMethods := methodKeySet(cc.Methods)
		for _, me := range sc.Methods {
			if _, ok := clientMethods[methodKey(me)]; !ok {
				return dvherr.Newf(dvherr.MappingMismatch, "method %s.%s%s -> %s %s present in server but not client", sc.Original, me.OriginalName, me.OriginalDescriptor, me.MappedName, me.MappedDescriptor)
			}
		}
	}
	return nil
}

// fieldKey and methodKey compare by both original and mapped descriptor
// (spec.md §4.6), so an overloaded name whose signature changed between
// client and server is treated as a distinct member, not a match.
func fieldKey(f FieldMapping) string {
	return f.OriginalName + " " + f.OriginalDescriptor + "->" + f.MappedName + " " + f.MappedDescriptor
}

func fieldKeySet(fields []FieldMapping) map[string]struct{} {
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[fieldKey(f)] = struct{}{}
	}
	return set
}

func methodKey(m MethodMapping) string {
	return m.OriginalName + m.OriginalDescriptor + "->" + m.MappedName + " " + m.MappedDescriptor
}

func methodKeySet(methods []MethodMapping) map[string]struct{} {
	set := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		set[methodKey(m)] = struct{}{}
	}
	return set
}
