package proxy

import (
	"strings"

	"github.com/rabits/control-interceptor/pkg/rpc"
	"github.com/tidwall/gjson"
)

// Protocol constants recognised by the rules.
const (
	// PermissionMethod is the harmless call dangerous methods are stubbed to.
	PermissionMethod = "JSONRPC.Permission"

	// PlayerOpenMethod starts playback of an item.
	PlayerOpenMethod = "Player.Open"

	// DisallowedPluginPrefix is the content source that must not be opened.
	DisallowedPluginPrefix = "plugin://plugin.video.youtube/play/?video_id="

	// AlternatePluginPrefix resolves the same video through another plugin.
	AlternatePluginPrefix = "plugin://plugin.video.sendtokodi/?https://youtu.be/"

	playerFilePath = "params.item.file"
)

var dangerousMethods = map[string]struct{}{
	"System.Suspend":   {},
	"System.Reboot":    {},
	"System.Shutdown":  {},
	"System.Hibernate": {},
	"Application.Quit": {},
}

// IsDangerous reports whether method is an irreversible system operation
// that must only run through the local executor.
func IsDangerous(method string) bool {
	_, ok := dangerousMethods[method]
	return ok
}

// DangerousMethods returns the dangerous method names in no particular order.
func DangerousMethods() []string {
	methods := make([]string, 0, len(dangerousMethods))
	for m := range dangerousMethods {
		methods = append(methods, m)
	}
	return methods
}

// Rule is a predicate over an envelope paired with an in-place transform.
// Applying a rule twice has the same effect as applying it once.
type Rule interface {
	Name() string
	Matches(env *rpc.Envelope) bool
	Apply(env *rpc.Envelope) error
}

// DangerousMethodStub swaps a dangerous method for PermissionMethod so the
// upstream only answers whether the caller may control the GUI.
// Params are left untouched.
type DangerousMethodStub struct{}

// Name implements Rule.
func (DangerousMethodStub) Name() string { return "dangerous_method_stub" }

// Matches implements Rule.
func (DangerousMethodStub) Matches(env *rpc.Envelope) bool {
	return IsDangerous(env.Method())
}

// Apply implements Rule.
func (DangerousMethodStub) Apply(env *rpc.Envelope) error {
	return env.SetMethod(PermissionMethod)
}

// ContentSourceRewrite points Player.Open requests for the disallowed plugin
// at the alternate plugin, keeping the video identifier.
type ContentSourceRewrite struct{}

// Name implements Rule.
func (ContentSourceRewrite) Name() string { return "content_source_rewrite" }

// Matches implements Rule.
func (ContentSourceRewrite) Matches(env *rpc.Envelope) bool {
	if env.Method() != PlayerOpenMethod {
		return false
	}
	file := env.Get(playerFilePath)
	return file.Type == gjson.String && strings.HasPrefix(file.Str, DisallowedPluginPrefix)
}

// Apply implements Rule. Only the leading prefix is replaced; the rest of
// the URI is kept as the identifier.
func (ContentSourceRewrite) Apply(env *rpc.Envelope) error {
	videoID := strings.TrimPrefix(env.Get(playerFilePath).Str, DisallowedPluginPrefix)
	return env.SetString(playerFilePath, AlternatePluginPrefix+videoID)
}
