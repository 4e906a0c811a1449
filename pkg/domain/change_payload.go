package domain

import "encoding/json"

// ChangeAction describes what happened to an entity in a ChangeEvent.
type ChangeAction string

const (
	ActionCreate ChangeAction = "create"
	ActionUpdate ChangeAction = "update"
	ActionDelete ChangeAction = "delete"
)

// ChangeEvent is published whenever an entity is saved, updated or deleted so
// independent views can refresh without being wired to the call site.
type ChangeEvent struct {
	Entity  EntityKind    `json:"entity"`
	Action  ChangeAction  `json:"action"`
	OwnerID string        `json:"owner_id,omitempty"`
	ID      string        `json:"id"`
	Payload ChangePayload `json:"payload"`
}

// ChangePayload wraps a JSON snapshot of the entity state after a change.
// Delete events carry an undefined payload.
type ChangePayload struct {
	defined bool
	raw     json.RawMessage
}

// NewChangePayload builds a payload from raw JSON. The bytes are cloned so
// subscribers cannot mutate each other's view.
func NewChangePayload(raw json.RawMessage) ChangePayload {
	payload := ChangePayload{defined: true}
	if raw != nil {
		payload.raw = cloneRawMessage(raw)
	}
	return payload
}

// NewChangePayloadFromValue marshals a typed value into a ChangePayload.
func NewChangePayloadFromValue[T any](value T) (ChangePayload, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return ChangePayload{}, err
	}
	return NewChangePayload(raw), nil
}

// UndefinedChangePayload returns an unset payload.
func UndefinedChangePayload() ChangePayload {
	return ChangePayload{}
}

// Defined reports whether the payload has been set.
func (p ChangePayload) Defined() bool {
	return p.defined
}

// IsEmpty reports whether the payload holds no bytes.
func (p ChangePayload) IsEmpty() bool {
	return !p.defined || len(p.raw) == 0
}

// Raw returns a copy of the JSON bytes, or nil when undefined or empty.
func (p ChangePayload) Raw() json.RawMessage {
	if p.IsEmpty() {
		return nil
	}
	return cloneRawMessage(p.raw)
}

// Decode unmarshals the payload into out. An empty payload leaves out untouched.
func (p ChangePayload) Decode(out any) error {
	if p.IsEmpty() {
		return nil
	}
	return json.Unmarshal(p.raw, out)
}

// MarshalJSON emits the wrapped JSON, or null when undefined.
func (p ChangePayload) MarshalJSON() ([]byte, error) {
	if p.IsEmpty() {
		return []byte("null"), nil
	}
	return cloneRawMessage(p.raw), nil
}

// UnmarshalJSON captures the raw JSON; a literal null yields an undefined payload.
func (p *ChangePayload) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = ChangePayload{}
		return nil
	}
	*p = NewChangePayload(data)
	return nil
}

func cloneRawMessage(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	cloned := make(json.RawMessage, len(raw))
	copy(cloned, raw)
	return cloned
}
