package router

import (
	"cmp"
	"encoding/binary"
	"math"
	"reflect"

	"github.com/cespare/xxhash/v2"
)

// Hash returns a 64-bit hash of a channel identifier. Equal identifiers
// always hash equally, so every task of a channel maps to the same bucket.
func Hash[C cmp.Ordered](c C) uint64 {
	switch v := any(c).(type) {
	case string:
		return xxhash.Sum64String(v)
	case int:
		return hashUint(uint64(v))
	case int32:
		return hashUint(uint64(v))
	case int64:
		return hashUint(uint64(v))
	case uint32:
		return hashUint(uint64(v))
	case uint64:
		return hashUint(v)
	}

	// Named and less common kinds.
	rv := reflect.ValueOf(c)
	switch rv.Kind() {
	case reflect.String:
		return xxhash.Sum64String(rv.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return hashUint(uint64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return hashUint(rv.Uint())
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == 0 {
			f = 0 // -0 and +0 compare equal
		}
		return hashUint(math.Float64bits(f))
	default:
		panic("router: unsupported channel kind " + rv.Kind().String())
	}
}

func hashUint(v uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return xxhash.Sum64(buf[:])
}
