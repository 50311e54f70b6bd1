package rpc

import "testing"

func TestAuthorized(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     bool
	}{
		{name: "granted", response: `{"id":1,"jsonrpc":"2.0","result":{"ControlGUI":true,"ControlPlayback":true}}`, want: true},
		{name: "bare result", response: `{"result":{"ControlGUI":true}}`, want: true},
		{name: "denied", response: `{"result":{"ControlGUI":false}}`, want: false},
		{name: "missing field", response: `{"result":{"ReadData":true}}`, want: false},
		{name: "null field", response: `{"result":{"ControlGUI":null}}`, want: false},
		{name: "number one", response: `{"result":{"ControlGUI":1}}`, want: true},
		{name: "number zero", response: `{"result":{"ControlGUI":0}}`, want: false},
		{name: "non-empty string", response: `{"result":{"ControlGUI":"yes"}}`, want: true},
		{name: "empty string", response: `{"result":{"ControlGUI":""}}`, want: false},
		{name: "empty object", response: `{"result":{"ControlGUI":{}}}`, want: false},
		{name: "non-empty array", response: `{"result":{"ControlGUI":[1]}}`, want: true},
		{name: "result is string", response: `{"result":"OK"}`, want: false},
		{name: "result is array", response: `{"result":[{"ControlGUI":true}]}`, want: false},
		{name: "error response", response: `{"error":{"code":-32601,"message":"Method not found."}}`, want: false},
		{name: "not json", response: `<html>`, want: false},
		{name: "empty", response: ``, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Authorized([]byte(tt.response)); got != tt.want {
				t.Errorf("Authorized(%s) = %v, want %v", tt.response, got, tt.want)
			}
		})
	}
}
