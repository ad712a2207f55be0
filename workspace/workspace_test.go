package workspace

import "testing"

func TestPathForEnv(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		root string
		path string
		want string
	}{
		{"host passthrough", Host, "/srv/ws", "/srv/ws/output/a.txt", "/srv/ws/output/a.txt"},
		{"chroot reroot", Chroot, "/srv/ws", "/srv/ws/output/a.txt", "/output/a.txt"},
		{"chroot root itself", Chroot, "/srv/ws", "/srv/ws", "/"},
		{"chroot outside root", Chroot, "/srv/ws", "/other/path", "/other/path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(tt.root, tt.typ)
			if got := w.PathForEnv(tt.path); got != tt.want {
				t.Errorf("PathForEnv(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
