package kodi

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

// DefaultPortSetting is the setting holding the upstream web server port.
const DefaultPortSetting = "services.webserverport"

// maxResponseBodySize caps a settings response read from the upstream.
const maxResponseBodySize = 1024 * 1024 // 1MB

// parsePort converts a setting value into a port number. The upstream
// reports it as an integer; a numeric string is accepted as well.
func parsePort(value json.RawMessage) (int, error) {
	v := gjson.ParseBytes(value)
	switch v.Type {
	case gjson.Number:
		n := v.Int()
		if float64(n) != v.Num {
			return 0, fmt.Errorf("port setting is not an integer: %s", v.Raw)
		}
		return int(n), nil
	case gjson.String:
		n, err := strconv.Atoi(v.Str)
		if err != nil {
			return 0, fmt.Errorf("port setting is not an integer: %q", v.Str)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected port setting type: %s", v.Raw)
	}
}
