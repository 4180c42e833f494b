package util

import "testing"

func TestNamespaceIsIdempotent(t *testing.T) {
	cases := []struct {
		prefix, key, want string
	}{
		{"app:", "user:1", "app:user:1"},
		{"app:", "app:user:1", "app:user:1"},
		{"", "user:1", "user:1"},
		{"app:", "", "app:"},
	}
	for _, tc := range cases {
		got := Namespace(tc.prefix, tc.key)
		if got != tc.want {
			t.Fatalf("Namespace(%q,%q)=%q want %q", tc.prefix, tc.key, got, tc.want)
		}
		if again := Namespace(tc.prefix, got); again != got {
			t.Fatalf("Namespace applied twice: %q -> %q", got, again)
		}
	}
}

func TestLockKeys(t *testing.T) {
	if got := LockKey("app:", "orders"); got != "app:lock:orders" {
		t.Fatalf("LockKey=%q", got)
	}
	if got := ComputeLockKey("app:", "report:2024"); got != "app:lock:app:report:2024" {
		t.Fatalf("ComputeLockKey=%q", got)
	}
	// already namespaced cache key must not be prefixed twice inside the lock name
	if got := ComputeLockKey("app:", "app:report:2024"); got != "app:lock:app:report:2024" {
		t.Fatalf("ComputeLockKey (prefixed)=%q", got)
	}
}

func TestFolderPattern(t *testing.T) {
	cases := map[string]string{
		"report":     "app:report:*",
		"report:":    "app:report:*",
		":report:*":  "app:report:*",
		"app:report": "app:report:*",
	}
	for in, want := range cases {
		if got := FolderPattern("app:", in); got != want {
			t.Fatalf("FolderPattern(%q)=%q want %q", in, got, want)
		}
	}
}
