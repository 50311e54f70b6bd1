package proxy

import (
	"context"
	"errors"
	"testing"

	"github.com/rabits/control-interceptor/pkg/rpc"
)

func mustDecode(t *testing.T, body string) *rpc.Envelope {
	t.Helper()
	env, err := rpc.Decode([]byte(body))
	if err != nil {
		t.Fatalf("Decode(%s) error: %v", body, err)
	}
	return env
}

func TestDangerousMethodStub_AllMethods(t *testing.T) {
	methods := []string{"System.Suspend", "System.Reboot", "System.Shutdown", "System.Hibernate", "Application.Quit"}
	if len(DangerousMethods()) != len(methods) {
		t.Fatalf("DangerousMethods() has %d entries, want %d", len(DangerousMethods()), len(methods))
	}

	for _, method := range methods {
		t.Run(method, func(t *testing.T) {
			env := mustDecode(t, `{"jsonrpc":"2.0","id":3,"method":"`+method+`","params":{"keep":[1,{"x":"y"}]}}`)
			params := env.Get("params").Raw

			rule := DangerousMethodStub{}
			if !rule.Matches(env) {
				t.Fatal("Matches() = false, want true")
			}
			if err := rule.Apply(env); err != nil {
				t.Fatalf("Apply() error: %v", err)
			}

			if env.Method() != PermissionMethod {
				t.Errorf("method = %q, want %q", env.Method(), PermissionMethod)
			}
			if got := env.Get("params").Raw; got != params {
				t.Errorf("params changed: got %s, want %s", got, params)
			}
			if rule.Matches(env) {
				t.Error("stubbed envelope should no longer match")
			}
		})
	}
}

func TestDangerousMethodStub_IgnoresOtherMethods(t *testing.T) {
	for _, method := range []string{"Application.SetVolume", "System.GetProperties", "system.suspend", "JSONRPC.Permission"} {
		env := mustDecode(t, `{"method":"`+method+`"}`)
		if (DangerousMethodStub{}).Matches(env) {
			t.Errorf("Matches(%q) = true, want false", method)
		}
	}
}

func TestContentSourceRewrite(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantFile string
		matches  bool
	}{
		{
			name:     "disallowed plugin",
			body:     `{"method":"Player.Open","params":{"item":{"file":"plugin://plugin.video.youtube/play/?video_id=dQw4w9WgXcQ"}}}`,
			wantFile: "plugin://plugin.video.sendtokodi/?https://youtu.be/dQw4w9WgXcQ",
			matches:  true,
		},
		{
			name:     "identifier with query characters",
			body:     `{"method":"Player.Open","params":{"item":{"file":"plugin://plugin.video.youtube/play/?video_id=XYZ&t=42"}}}`,
			wantFile: "plugin://plugin.video.sendtokodi/?https://youtu.be/XYZ&t=42",
			matches:  true,
		},
		{
			name:     "prefix repeated inside identifier",
			body:     `{"method":"Player.Open","params":{"item":{"file":"plugin://plugin.video.youtube/play/?video_id=A&next=plugin://plugin.video.youtube/play/?video_id=B"}}}`,
			wantFile: "plugin://plugin.video.sendtokodi/?https://youtu.be/A&next=plugin://plugin.video.youtube/play/?video_id=B",
			matches:  true,
		},
		{
			name:     "other plugin path",
			body:     `{"method":"Player.Open","params":{"item":{"file":"plugin://plugin.video.youtube/playlist/?id=abc"}}}`,
			wantFile: "plugin://plugin.video.youtube/playlist/?id=abc",
		},
		{
			name:     "local file",
			body:     `{"method":"Player.Open","params":{"item":{"file":"/media/movie.mkv"}}}`,
			wantFile: "/media/movie.mkv",
		},
		{
			name:     "other method",
			body:     `{"method":"Playlist.Add","params":{"item":{"file":"plugin://plugin.video.youtube/play/?video_id=XYZ"}}}`,
			wantFile: "plugin://plugin.video.youtube/play/?video_id=XYZ",
		},
		{
			name: "no item",
			body: `{"method":"Player.Open","params":{"item":{"playlistid":1}}}`,
		},
		{
			name: "file not a string",
			body: `{"method":"Player.Open","params":{"item":{"file":42}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := mustDecode(t, tt.body)
			rule := ContentSourceRewrite{}

			if got := rule.Matches(env); got != tt.matches {
				t.Fatalf("Matches() = %v, want %v", got, tt.matches)
			}
			if !tt.matches {
				return
			}
			if err := rule.Apply(env); err != nil {
				t.Fatalf("Apply() error: %v", err)
			}
			if got := env.Get("params.item.file").String(); got != tt.wantFile {
				t.Errorf("file = %q, want %q", got, tt.wantFile)
			}
			if rule.Matches(env) {
				t.Error("rewritten envelope should no longer match")
			}
		})
	}
}

func TestRuleChain_Intercept(t *testing.T) {
	var applied []string
	chain := NewDefaultRuleChain(WithApplyHook(func(rule string) {
		applied = append(applied, rule)
	}))

	t.Run("stub", func(t *testing.T) {
		applied = nil
		env := mustDecode(t, `{"method":"Application.Quit"}`)
		out, err := chain.Intercept(context.Background(), env)
		if err != nil {
			t.Fatal(err)
		}
		if out.Method() != PermissionMethod {
			t.Errorf("method = %q, want %q", out.Method(), PermissionMethod)
		}
		if len(applied) != 1 || applied[0] != "dangerous_method_stub" {
			t.Errorf("applied = %v, want [dangerous_method_stub]", applied)
		}
	})

	t.Run("untouched", func(t *testing.T) {
		applied = nil
		body := `{"jsonrpc":"2.0","id":1,"method":"Application.GetProperties","params":{"properties":["volume"]}}`
		env := mustDecode(t, body)
		out, err := chain.Intercept(context.Background(), env)
		if err != nil {
			t.Fatal(err)
		}
		if string(out.Bytes()) != body {
			t.Errorf("envelope changed: %s", out.Bytes())
		}
		if len(applied) != 0 {
			t.Errorf("applied = %v, want none", applied)
		}
	})
}

type failingRule struct{}

func (failingRule) Name() string { return "failing" }
func (failingRule) Matches(*rpc.Envelope) bool { return true }
func (failingRule) Apply(*rpc.Envelope) error { return errors.New("boom") }

func TestRuleChain_RuleError(t *testing.T) {
	chain := NewRuleChain([]Rule{failingRule{}})
	_, err := chain.Intercept(context.Background(), mustDecode(t, `{"method":"a"}`))
	if err == nil {
		t.Fatal("expected error from failing rule")
	}
}
