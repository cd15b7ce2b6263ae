package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"

	"leap-relay-go/internal/types"
)

// RFC 8746 typed array tags the bridge may use for vectors.
const (
	tagUint8     = 64
	tagUint16LE  = 69
	tagUint32LE  = 70
	tagFloat32LE = 85
	tagFloat64LE = 86
)

var errVectorLength = errors.New("vector must have 3 components")

// decodeVector accepts a plain CBOR array of three numbers or a typed array.
func decodeVector(value any) (types.Vector, error) {
	var components []float64
	switch v := value.(type) {
	case []any:
		components = make([]float64, 0, len(v))
		for _, item := range v {
			f, err := toFloat(item)
			if err != nil {
				return types.Vector{}, err
			}
			components = append(components, f)
		}
	case cbor.Tag:
		decoded, err := decodeTypedArray(v)
		if err != nil {
			return types.Vector{}, err
		}
		components = decoded
	default:
		return types.Vector{}, fmt.Errorf("unsupported vector encoding %T", value)
	}
	if len(components) != 3 {
		return types.Vector{}, fmt.Errorf("%w, got %d", errVectorLength, len(components))
	}
	return types.Vector{X: components[0], Y: components[1], Z: components[2]}, nil
}

func decodeTypedArray(tag cbor.Tag) ([]float64, error) {
	data, ok := tag.Content.([]byte)
	if !ok {
		return nil, fmt.Errorf("unsupported typed array content %T", tag.Content)
	}

	switch tag.Number {
	case tagUint8:
		out := make([]float64, len(data))
		for i, b := range data {
			out[i] = float64(b)
		}
		return out, nil
	case tagUint16LE:
		return bytesToFloats(data, 2, func(b []byte) float64 {
			return float64(binary.LittleEndian.Uint16(b))
		})
	case tagUint32LE:
		return bytesToFloats(data, 4, func(b []byte) float64 {
			return float64(binary.LittleEndian.Uint32(b))
		})
	case tagFloat32LE:
		return bytesToFloats(data, 4, func(b []byte) float64 {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		})
	case tagFloat64LE:
		return bytesToFloats(data, 8, func(b []byte) float64 {
			return math.Float64frombits(binary.LittleEndian.Uint64(b))
		})
	default:
		return nil, fmt.Errorf("unsupported typed array tag %d", tag.Number)
	}
}

func bytesToFloats(data []byte, size int, convert func([]byte) float64) ([]float64, error) {
	if len(data)%size != 0 {
		return nil, fmt.Errorf("typed array length %d not a multiple of %d", len(data), size)
	}
	out := make([]float64, len(data)/size)
	for i := range out {
		out[i] = convert(data[i*size : (i+1)*size])
	}
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("unsupported float type %T", v)
	}
}
