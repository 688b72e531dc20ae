package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, Version+" (") {
		t.Errorf("String() = %q, want prefix %q", s, Version+" (")
	}
	if !strings.Contains(s, Commit) {
		t.Errorf("String() = %q, missing commit %q", s, Commit)
	}
}

func TestUserAgent(t *testing.T) {
	if got, want := UserAgent("chatctl"), "chatctl/"+Version; got != want {
		t.Errorf("UserAgent() = %q, want %q", got, want)
	}
}

func TestAttr(t *testing.T) {
	a := Attr()
	if a.Key != "build" {
		t.Errorf("Attr().Key = %q, want build", a.Key)
	}
	if n := len(a.Value.Group()); n != 2 {
		t.Errorf("Attr() group has %d fields, want 2", n)
	}
}
