package propval

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rbaliyan/exmdb/wire"
)

// jsonPropval is the JSON form of a TaggedPropval. Data holds the wire
// payload so that every type round trips; Text is informational.
type jsonPropval struct {
	Tag  string `json:"tag"`
	Type string `json:"type"`
	Data []byte `json:"data"`
	Text string `json:"text,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (tp TaggedPropval) MarshalJSON() ([]byte, error) {
	p := wire.NewPusher(16)
	if err := PushValue(p, tp.Value); err != nil {
		return nil, err
	}
	return json.Marshal(jsonPropval{
		Tag:  fmt.Sprintf("0x%08x", uint32(tp.Tag)),
		Type: tp.Tag.Type().String(),
		Data: p.Bytes(),
		Text: tp.PrintValue(),
	})
}

// UnmarshalJSON implements json.Unmarshaler. The payload is decoded with
// the wire codec, so unsupported or malformed values are rejected.
func (tp *TaggedPropval) UnmarshalJSON(data []byte) error {
	var j jsonPropval
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	raw, err := strconv.ParseUint(j.Tag, 0, 32)
	if err != nil {
		return fmt.Errorf("propval: invalid tag %q: %w", j.Tag, err)
	}
	tag := Tag(raw)
	r := wire.NewPuller(j.Data)
	v, err := pullValue(r, tag, tag.Type())
	if err != nil {
		return err
	}
	if err := r.Done(); err != nil {
		return malformed(tag, tag.Type(), err)
	}
	*tp = TaggedPropval{Tag: tag, Value: v}
	return nil
}
