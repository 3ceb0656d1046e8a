package types

import (
	"encoding/json"
	"fmt"
)

// Event is a key/value pair a module emits during dispatch.
type Event struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

func NewEvent(key, value string) Event {
	return Event{Key: []byte(key), Value: []byte(value)}
}

type eventJSON struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// MarshalJSON renders event keys and values as text; modules emit printable events.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{Key: string(e.Key), Value: string(e.Value)})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var ej eventJSON
	if err := json.Unmarshal(data, &ej); err != nil {
		return err
	}
	e.Key, e.Value = []byte(ej.Key), []byte(ej.Value)
	return nil
}

func (e Event) String() string {
	return fmt.Sprintf("%s=%s", e.Key, e.Value)
}
