package serializer

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/DazeHolic/lvdb/rpc/common"
)

// IRPCSerializer converts messages to and from their wire form.
// Deserialize overwrites every field of msg, so a message may be reused.
type IRPCSerializer interface {
	Serialize(msg common.Message) ([]byte, error)
	Deserialize(b []byte, msg *common.Message) error
}

// Names lists the serializers known to New
var Names = []string{"binary", "json", "gob"}

// New returns the serializer with the given name, the empty name selects binary
func New(name string) (IRPCSerializer, error) {
	switch name {
	case "binary", "":
		return NewBinarySerializer(), nil
	case "json":
		return NewJSONSerializer(), nil
	case "gob":
		return NewGOBSerializer(), nil
	default:
		return nil, fmt.Errorf("unknown serializer: %s (one of %v)", name, Names)
	}
}

// --------------------------------------------------------------------------
// JSON
// --------------------------------------------------------------------------

// NewJSONSerializer creates a serializer that writes readable json, message types by name
func NewJSONSerializer() IRPCSerializer {
	return jsonSerializerImpl{}
}

type jsonSerializerImpl struct{}

func (jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	*msg = common.Message{}
	return json.Unmarshal(b, msg)
}

// --------------------------------------------------------------------------
// GOB
// --------------------------------------------------------------------------

// NewGOBSerializer creates a serializer using encoding/gob. Every message carries
// its own type description, which makes gob the largest of the formats.
func NewGOBSerializer() IRPCSerializer {
	return gobSerializerImpl{}
}

type gobSerializerImpl struct{}

var gobBuffers = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

func (gobSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	buf := gobBuffers.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		gobBuffers.Put(buf)
	}()

	if err := gob.NewEncoder(buf).Encode(msg); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

func (gobSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// gob leaves zero valued fields untouched
	*msg = common.Message{}
	return gob.NewDecoder(bytes.NewReader(b)).Decode(msg)
}
