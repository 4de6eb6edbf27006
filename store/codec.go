package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"qrwatermark/core"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

const recordVersion = 1

// ErrCorrupt 记录损坏或校验和不匹配
var ErrCorrupt = errors.New("corrupt reference record")

// record 持久化格式: CBOR {1: version, 2: values, 3: blake3(values)}
type record struct {
	Version  int       `cbor:"1,keyasint"`
	Values   []float64 `cbor:"2,keyasint"`
	Checksum []byte    `cbor:"3,keyasint"`
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}
}

// Marshal 编码 reference
func Marshal(ref core.Reference) ([]byte, error) {
	sum := checksum(ref.Values)
	return encMode.Marshal(record{
		Version:  recordVersion,
		Values:   ref.Values,
		Checksum: sum[:],
	})
}

// Unmarshal 解码并校验
func Unmarshal(data []byte) (core.Reference, error) {
	var rec record
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return core.Reference{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if rec.Version != recordVersion {
		return core.Reference{}, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, rec.Version)
	}
	sum := checksum(rec.Values)
	if !bytes.Equal(sum[:], rec.Checksum) {
		return core.Reference{}, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	return core.Reference{Values: rec.Values}, nil
}

func checksum(values []float64) [32]byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return blake3.Sum256(buf)
}
