package auth

import "testing"

func TestIdentityString(t *testing.T) {
	tests := []struct {
		name string
		id   Identity
		want string
	}{
		{"anonymous", Identity{Anonymous: true}, "anonymous"},
		{"unix", Identity{UID: 1000, GID: 100}, "uid=1000,gid=100"},
		{"named", Identity{Username: "alice", UID: 1000, GID: 100}, "alice(uid=1000,gid=100)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
