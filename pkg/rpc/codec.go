package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/tidwall/gjson"
)

// SettingValueMethod is the upstream method that reads a single setting.
const SettingValueMethod = "Settings.GetSettingValue"

// ErrUnrelated is returned by DecodeSettingValue for notifications and for
// responses to other calls sharing the same connection.
var ErrUnrelated = errors.New("message is not the awaited response")

// EncodeMessage serializes a JSON-RPC message to its wire format.
func EncodeMessage(msg jsonrpc.Message) ([]byte, error) {
	return jsonrpc.EncodeMessage(msg)
}

// NewSettingValueRequest builds a Settings.GetSettingValue call for setting.
// The returned ID is what the matching response will carry.
func NewSettingValueRequest(id int64, setting string) ([]byte, jsonrpc.ID, error) {
	reqID, err := jsonrpc.MakeID(float64(id))
	if err != nil {
		return nil, jsonrpc.ID{}, fmt.Errorf("failed to make request id: %w", err)
	}
	params, err := json.Marshal(map[string]string{"setting": setting})
	if err != nil {
		return nil, jsonrpc.ID{}, fmt.Errorf("failed to marshal params: %w", err)
	}
	data, err := jsonrpc.EncodeMessage(&jsonrpc.Request{
		ID:     reqID,
		Method: SettingValueMethod,
		Params: params,
	})
	if err != nil {
		return nil, jsonrpc.ID{}, fmt.Errorf("failed to encode settings query: %w", err)
	}
	return data, reqID, nil
}

// DecodeSettingValue extracts result.value from the response to the call
// identified by id.
func DecodeSettingValue(data []byte, id jsonrpc.ID) (json.RawMessage, error) {
	msg, err := jsonrpc.DecodeMessage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	resp, ok := msg.(*jsonrpc.Response)
	if !ok || resp.ID != id {
		return nil, ErrUnrelated
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("settings query failed: %w", resp.Error)
	}

	var payload struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(resp.Result, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode settings result: %w", err)
	}
	if len(payload.Value) == 0 {
		return nil, errors.New("settings result has no value")
	}
	return payload.Value, nil
}

// ErrorResponse encodes a JSON-RPC error answering the request whose raw id
// is given. A nil or unusable id yields an error response without one.
func ErrorResponse(rawID json.RawMessage, code int64, message string) []byte {
	var id jsonrpc.ID
	if len(rawID) > 0 {
		if parsed, err := jsonrpc.MakeID(gjson.ParseBytes(rawID).Value()); err == nil {
			id = parsed
		}
	}
	data, err := jsonrpc.EncodeMessage(&jsonrpc.Response{
		ID:    id,
		Error: &jsonrpc.Error{Code: code, Message: message},
	})
	if err != nil {
		return []byte(fmt.Sprintf(`{"jsonrpc":"2.0","error":{"code":%d,"message":%q}}`, code, message))
	}
	return data
}
