package wsbridge

import "encoding/json"

// MessageType identifies a bridge message.
type MessageType string

// Client to server.
const (
	TypeHello      MessageType = "hello"
	TypeHashChange MessageType = "hashchange"
	TypeConfirmed  MessageType = "confirmed"
)

// Server to client.
const (
	TypePushState    MessageType = "pushState"
	TypeReplaceState MessageType = "replaceState"
	TypeSetHash      MessageType = "setHash"
	TypeReplace      MessageType = "replace"
	TypeGo           MessageType = "go"
	TypeConfirm      MessageType = "confirm"
)

// Message is the single JSON envelope used in both directions.
type Message struct {
	Type MessageType `json:"type"`

	// Href is the tab's full URL (hello, hashchange).
	Href string `json:"href,omitempty"`

	// State is history.state (hello, hashchange) or the state to write
	// (pushState, replaceState).
	State json.RawMessage `json:"state,omitempty"`

	// StateAPI reports whether the tab supports pushState (hello).
	StateAPI bool `json:"stateApi,omitempty"`

	// URL is the target of pushState, replaceState and replace.
	URL string `json:"url,omitempty"`

	// Hash is the fragment assigned by setHash, without '#'.
	Hash string `json:"hash,omitempty"`

	// Delta is the history.go argument.
	Delta int `json:"delta,omitempty"`

	// ID pairs a confirm request with its answer.
	ID uint64 `json:"id,omitempty"`

	// Text is the confirmation prompt.
	Text string `json:"text,omitempty"`

	// OK is the confirmation answer.
	OK bool `json:"ok,omitempty"`
}

func encodeState(state any) (json.RawMessage, error) {
	if state == nil {
		return nil, nil
	}
	return json.Marshal(state)
}

// decodeState turns a JSON state into a Go value; null and absent are nil.
func decodeState(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
