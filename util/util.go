package util

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"time"

	"github.com/autom8ter/docmap/errors"
	"github.com/ghodss/yaml"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var validate = validator.New()

// ValidateStruct validates the struct against its `validate` tags
func ValidateStruct(val any) error {
	return errors.Wrap(validate.Struct(val), errors.Validation, "")
}

// Decode decodes the input into the output based on json tags
func Decode(input any, output any) error {
	config := &mapstructure.DecoderConfig{
		WeaklyTypedInput:     true,
		Result:               output,
		TagName:              "json",
		IgnoreUntaggedFields: true,
	}
	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// JSONString returns a json string of the input
func JSONString(input any) string {
	bits, _ := json.Marshal(input)
	return string(bits)
}

// EncodeValue encodes a document identifier or scalar into sortable bytes
func EncodeValue(value any) []byte {
	if value == nil {
		return []byte("")
	}
	switch value := value.(type) {
	case bool:
		return EncodeValue(cast.ToString(value))
	case string:
		return []byte(value)
	case bson.ObjectID:
		return []byte(value.Hex())
	case int, int64, int32, uint64, uint32, uint16:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(cast.ToInt64(value))^(1<<63))
		return buf
	case float64, float32:
		buf := make([]byte, 8)
		bits := math.Float64bits(cast.ToFloat64(value))
		if bits&(1<<63) != 0 {
			bits = ^bits
		} else {
			bits |= 1 << 63
		}
		binary.BigEndian.PutUint64(buf, bits)
		return buf
	case time.Time:
		return EncodeValue(value.UnixNano())
	case bson.DateTime:
		return EncodeValue(value.Time())
	default:
		return EncodeValue(JSONString(value))
	}
}

// YAMLToJSON converts yaml content into json. JSON content is returned untouched.
func YAMLToJSON(yamlContent []byte) ([]byte, error) {
	if isJSON(string(yamlContent)) {
		return yamlContent, nil
	}
	return yaml.YAMLToJSON(yamlContent)
}

// JSONToYAML converts json content into yaml
func JSONToYAML(jsonContent []byte) ([]byte, error) {
	return yaml.JSONToYAML(jsonContent)
}

func isJSON(str string) bool {
	var js json.RawMessage
	return json.Unmarshal([]byte(str), &js) == nil
}
