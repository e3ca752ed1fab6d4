// Package fingerprint implements the content-addressed validator (FP in
// spec.md §4.1) that every pipeline stage consults before doing expensive
// work: a Key is an insertion-ordered sequence of labeled values, each
// either a literal token, a lazily-hashed filesystem path, or a named
// dependency's declared build-time hash.
package fingerprint

import (
	"bufio"
	"crypto/sha1"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
)

// valueKind tags which variant a Key entry holds — the "polymorphism over
// bytes vs strings vs dependency names" design note in spec.md §9,
// modeled as a tagged sum rather than a class hierarchy.
type valueKind int

const (
	kindHash valueKind = iota
	kindLiteral
	kindPath
	kindDependency
)

type entry struct {
	label string
	kind  valueKind
	raw   string // literal text, path, or dependency name as supplied
	hash  string // resolved 40-char hex hash, computed lazily for kindPath
}

// DependencyHashes resolves a named dependency to its frozen build-time
// SHA-1, per spec.md §6's embedded dependency_hashes.txt.
type DependencyHashes interface {
	Hash(name string) (string, bool)
}

// Key is an insertion-ordered label->value mapping. The zero value is a
// usable empty key.
type Key struct {
	order []string
	byLbl map[string]*entry
	deps  DependencyHashes
}

// New creates a Key that resolves dependency-name values against deps.
func New(deps DependencyHashes) *Key {
	return &Key{byLbl: make(map[string]*entry), deps: deps}
}

// Put records a raw 40-char hex hash value under label, overwriting any
// prior value for that label (invariant (a) in spec.md §4.1).
func (k *Key) Put(label, hexHash string) { k.set(label, kindHash, hexHash) }

// PutLiteral records an opaque literal token under label.
func (k *Key) PutLiteral(label, token string) { k.set(label, kindLiteral, token) }

// PutPath records a filesystem path under label; its SHA-1 is computed
// lazily, exactly once, the first time the key is serialized or compared
// (invariant (b)).
func (k *Key) PutPath(label, path string) { k.set(label, kindPath, path) }

// PutDependency records a named dependency under label; its hash is
// resolved from the DependencyHashes table supplied to New.
func (k *Key) PutDependency(label, name string) { k.set(label, kindDependency, name) }

func (k *Key) set(label string, kind valueKind, raw string) {
	if k.byLbl == nil {
		k.byLbl = make(map[string]*entry)
	}
	if _, exists := k.byLbl[label]; !exists {
		k.order = append(k.order, label)
	}
	k.byLbl[label] = &entry{label: label, kind: kind, raw: raw}
}

// resolve returns the entry's comparable value, hashing lazily for
// kindPath/kindDependency and caching the result on the entry.
func (k *Key) resolve(e *entry) (string, error) {
	switch e.kind {
	case kindHash, kindLiteral:
		return e.raw, nil
	case kindPath:
		if e.hash == "" {
			h, err := hashFile(e.raw)
			if err != nil {
				return "", fmt.Errorf("hashing %s: %w", e.raw, err)
			}
			e.hash = h
		}
		return e.hash, nil
	case kindDependency:
		if e.hash == "" {
			if k.deps == nil {
				return "", fmt.Errorf("no dependency hash table configured for %q", e.raw)
			}
			h, ok := k.deps.Hash(e.raw)
			if !ok {
				return "", fmt.Errorf("unknown dependency %q", e.raw)
			}
			e.hash = h
		}
		return e.hash, nil
	default:
		return "", fmt.Errorf("unknown fingerprint value kind")
	}
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// Serialize renders the key in its deterministic text form: one
// "label=value" line per entry in insertion order, optionally restricted
// to a subset of labels. Both producer and consumer must agree on label
// order and value normalization for a re-run to reproduce the comparison
// deterministically (spec.md §4.1's "why both sides must agree").
func (k *Key) Serialize(labels ...string) (string, error) {
	allow := toSet(labels)
	var b strings.Builder
	for _, label := range k.order {
		if allow != nil {
			if _, ok := allow[label]; !ok {
				continue
			}
		}
		v, err := k.resolve(k.byLbl[label])
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%s=%s\n", label, v)
	}
	return b.String(), nil
}

// Write atomically serializes the key to path (spec.md §4.1's write op).
// The temp file name is UUID-suffixed to avoid collisions across
// concurrently-writing stages sharing a cache directory.
func (k *Key) Write(path string) error {
	text, err := k.Serialize()
	if err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// IsValid recomputes the current key, reads the stored key from
// storedFile, and reports whether each label in allowedLabels (default:
// every label present in both) matches. A missing file is invalid.
func (k *Key) IsValid(storedFile string, allowedLabels ...string) (bool, error) {
	stored, err := parseFile(storedFile)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	labels := allowedLabels
	if len(labels) == 0 {
		labels = intersectLabels(k.order, stored)
		if len(labels) == 0 {
			return false, nil
		}
	}

	for _, label := range labels {
		e, ok := k.byLbl[label]
		if !ok {
			return false, nil
		}
		want, ok := stored[label]
		if !ok {
			return false, nil
		}
		got, err := k.resolve(e)
		if err != nil {
			return false, err
		}
		if got != want {
			return false, nil
		}
	}
	return true, nil
}

func intersectLabels(order []string, stored map[string]string) []string {
	var out []string
	for _, l := range order {
		if _, ok := stored[l]; ok {
			out = append(out, l)
		}
	}
	return out
}

// parseFile reads a fingerprint file in the line-oriented label=value
// form, skipping "# comment" lines (spec.md §6's file format).
func parseFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			continue
		}
		out[line[:idx]] = line[idx+1:]
	}
	return out, scanner.Err()
}

func toSet(labels []string) map[string]struct{} {
	if len(labels) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		m[l] = struct{}{}
	}
	return m
}
