package main

import "testing"

func TestResolvePathAbsolute(t *testing.T) {
	got, err := resolvePath("/bin/true")
	if err != nil {
		t.Fatalf("resolvePath: %v", err)
	}
	if got != "/bin/true" {
		t.Fatalf("got %q, want /bin/true", got)
	}
}

func TestResolvePathNotFound(t *testing.T) {
	if _, err := resolvePath("definitely-not-a-real-binary-xyz"); err == nil {
		t.Fatal("expected error for unresolvable command")
	}
}

func TestSplitPath(t *testing.T) {
	got := splitPath("/usr/bin:/bin::/usr/local/bin")
	want := []string{"/usr/bin", "/bin", "/usr/local/bin"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
