// ABOUTME: Tests for version constants
// ABOUTME: Checks the identification strings and the user agent token
package version

import (
	"strings"
	"testing"
)

func TestIdentificationDefined(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"Version", Version},
		{"Product", Product},
		{"Manufacturer", Manufacturer},
	}
	for _, tt := range tests {
		if tt.value == "" {
			t.Errorf("%s should not be empty", tt.name)
		}
		if len(tt.value) > 100 {
			t.Errorf("%s is unreasonably long", tt.name)
		}
	}
}

func TestUserAgent(t *testing.T) {
	ua := UserAgent()
	if !strings.HasSuffix(ua, "/"+Version) {
		t.Errorf("UserAgent() = %q, want version suffix", ua)
	}
	if strings.ContainsAny(ua, " \t") {
		t.Errorf("UserAgent() = %q contains whitespace", ua)
	}
}

func TestUserAgentFollowsLinkTimeVersion(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	Version = "1.2.3-rc1"
	if got := UserAgent(); got != "visuallock/1.2.3-rc1" {
		t.Errorf("UserAgent() = %q", got)
	}
}
