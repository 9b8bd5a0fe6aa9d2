package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
)

func testContext(t *testing.T) *ResolveContext {
	t.Helper()
	return &ResolveContext{
		Workspace: &Workspace{Name: "app", Path: "/work/app", URI: "file:///work/app"},
		Workspaces: []Workspace{
			{Name: "app", Path: "/work/app", URI: "file:///work/app"},
			{Name: "lib", Path: "/work/lib", URI: "file:///work/lib"},
		},
		Environ: []string{"HOME=/home/dev", "VENV=/opt/venv", "EMPTY="},
	}
}

func TestResolveString_WorkspaceFolder(t *testing.T) {
	rc := testContext(t)

	got := rc.ResolveString("${workspaceFolder}/src")
	if got != "/work/app/src" {
		t.Errorf("ResolveString() = %q, want %q", got, "/work/app/src")
	}
	if strings.Contains(got, "${workspaceFolder}") {
		t.Error("literal ${workspaceFolder} remained after resolution")
	}
}

func TestResolveString_NamedWorkspace(t *testing.T) {
	rc := testContext(t)

	if got := rc.ResolveString("${workspaceFolder:lib}/go.mod"); got != "/work/lib/go.mod" {
		t.Errorf("named workspace = %q, want %q", got, "/work/lib/go.mod")
	}

	// Unknown workspace names stay literal.
	in := "${workspaceFolder:missing}/go.mod"
	if got := rc.ResolveString(in); got != in {
		t.Errorf("unknown workspace = %q, want unchanged %q", got, in)
	}
}

func TestResolveString_Home(t *testing.T) {
	rc := testContext(t)

	tests := []struct {
		in   string
		want string
	}{
		{"${userHome}/.pylintrc", "/home/dev/.pylintrc"},
		{"~/bin/tool", "/home/dev/bin/tool"},
		{`~\bin\tool`, `/home/dev\bin\tool`},
	}
	for _, tt := range tests {
		if got := rc.ResolveString(tt.in); got != tt.want {
			t.Errorf("ResolveString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveString_MissingHome(t *testing.T) {
	rc := &ResolveContext{Environ: []string{"PATH=/usr/bin"}}

	in := "${userHome}/x"
	if got := rc.ResolveString(in); got != in {
		t.Errorf("missing home = %q, want unchanged %q", got, in)
	}
}

func TestResolveString_Env(t *testing.T) {
	rc := testContext(t)

	if got := rc.ResolveString("${env:VENV}/bin"); got != "/opt/venv/bin" {
		t.Errorf("env token = %q, want %q", got, "/opt/venv/bin")
	}

	// Unset and empty variables stay literal, and resolution is
	// idempotent for them.
	for _, in := range []string{"${env:NOPE}", "${env:EMPTY}"} {
		once := rc.ResolveString(in)
		if once != in {
			t.Errorf("ResolveString(%q) = %q, want unchanged", in, once)
		}
		if twice := rc.ResolveString(once); twice != once {
			t.Errorf("resolution not idempotent: %q then %q", once, twice)
		}
	}
}

func TestResolveString_Cwd(t *testing.T) {
	rc := testContext(t)
	wd, err := os.Getwd()
	if err != nil {
		t.Skip("no working directory")
	}

	if got := rc.ResolveString("${cwd}/x"); got != wd+"/x" {
		t.Errorf("cwd token = %q, want %q", got, wd+"/x")
	}
}

func TestResolveString_UnknownTokenUntouched(t *testing.T) {
	rc := testContext(t)

	// ${fileDirname} is not a recognized token and must survive.
	in := "${fileDirname}/out"
	if got := rc.ResolveString(in); got != in {
		t.Errorf("unknown token = %q, want unchanged %q", got, in)
	}
}

func TestResolveStrings_InterpreterSplice(t *testing.T) {
	tests := []struct {
		name        string
		interpreter []string
		in          []string
		want        []string
	}{
		{
			name:        "full splice",
			interpreter: []string{"/opt/venv/bin/python", "-u"},
			in:          []string{"${interpreter}"},
			want:        []string{"/opt/venv/bin/python", "-u"},
		},
		{
			name:        "empty interpreter drops element",
			interpreter: []string{},
			in:          []string{"${interpreter}"},
			want:        nil,
		},
		{
			name:        "splice preserves surrounding order",
			interpreter: []string{"python"},
			in:          []string{"a", "${interpreter}", "b"},
			want:        []string{"a", "python", "b"},
		},
		{
			name:        "token inside longer element is not spliced",
			interpreter: []string{"python"},
			in:          []string{"wrap ${interpreter} end"},
			want:        []string{"wrap ${interpreter} end"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := testContext(t)
			rc.Interpreter = tt.interpreter
			got := rc.ResolveStrings(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ResolveStrings(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolveStrings_NilInterpreterKeepsToken(t *testing.T) {
	rc := testContext(t)
	got := rc.ResolveStrings([]string{"${interpreter}"})
	if len(got) != 1 || got[0] != "${interpreter}" {
		t.Errorf("nil interpreter = %v, want token kept", got)
	}
}

func TestResolveStrings_MixedTokensOnePass(t *testing.T) {
	rc := testContext(t)
	got := rc.ResolveStrings([]string{"${workspaceFolder}:${env:VENV}"})
	want := "/work/app:/opt/venv"
	if len(got) != 1 || got[0] != want {
		t.Errorf("mixed tokens = %v, want [%q]", got, want)
	}
}
