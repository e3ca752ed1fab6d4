package repo

import "testing"

func TestChunkTargetsEndsAtZero(t *testing.T) {
	targets := chunkTargets(25, 10)
	if len(targets) == 0 || targets[len(targets)-1] != 0 {
		t.Fatalf("expected final target 0, got %v", targets)
	}
	for i := 1; i < len(targets); i++ {
		if targets[i] >= targets[i-1] {
			t.Fatalf("expected strictly decreasing targets, got %v", targets)
		}
	}
}

func TestChunkTargetsSmallAncestorIndex(t *testing.T) {
	targets := chunkTargets(3, 10)
	if len(targets) != 1 || targets[0] != 0 {
		t.Fatalf("expected single target [0] when ancestorIndex < chunkSize, got %v", targets)
	}
}

func TestIndexOf(t *testing.T) {
	haystack := []string{"a", "b", "c"}
	if idx := indexOf(haystack, "b"); idx != 1 {
		t.Errorf("expected index 1, got %d", idx)
	}
	if idx := indexOf(haystack, "z"); idx != -1 {
		t.Errorf("expected -1 for missing element, got %d", idx)
	}
}
