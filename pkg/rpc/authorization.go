package rpc

import "github.com/tidwall/gjson"

// Authorized reports whether an upstream response grants GUI control.
// The response must carry a "result" object whose ControlGUI field is truthy.
func Authorized(response []byte) bool {
	if !gjson.ValidBytes(response) {
		return false
	}
	result := gjson.GetBytes(response, "result")
	if !result.IsObject() {
		return false
	}
	return truthy(result.Get("ControlGUI"))
}

// truthy follows loose JSON truthiness: true, non-zero numbers, non-empty
// strings, and non-empty objects or arrays.
func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		return r.Str != ""
	case gjson.JSON:
		nonEmpty := false
		r.ForEach(func(_, _ gjson.Result) bool {
			nonEmpty = true
			return false
		})
		return nonEmpty
	default:
		return false
	}
}
