package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"reflect"
)

// ReadRecord decodes the fixed-layout record v from data at the given absolute offset.
// v must be a pointer to a fixed-size value. Fields are read in declaration order as
// packed little-endian values with no alignment padding.
func ReadRecord(data []byte, offset int64, v any) error {
	size := binary.Size(v)
	if size < 0 {
		return fmt.Errorf("record %T has no fixed size", v)
	}

	region, err := span(data, offset, int64(size))
	if err != nil {
		return err
	}

	return binary.Read(bytes.NewReader(region), binary.LittleEndian, v)
}

// ReadRecords decodes count consecutive records of type T starting at offset.
// The whole region is bounds-checked before anything is allocated.
func ReadRecords[T any](data []byte, offset int64, count int32) ([]T, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: negative count %d at offset %d", ErrTruncatedBuffer, count, offset)
	}

	var zero T
	size := binary.Size(&zero)
	if size < 0 {
		return nil, fmt.Errorf("record %s has no fixed size", reflect.TypeOf(zero))
	}

	if _, err := span(data, offset, int64(size)*int64(count)); err != nil {
		return nil, err
	}

	records := make([]T, count)
	for i := range records {
		if err := ReadRecord(data, offset+int64(i)*int64(size), &records[i]); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return records, nil
}

// span returns data[offset:offset+length] or ErrTruncatedBuffer.
func span(data []byte, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > int64(len(data)) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrTruncatedBuffer, length, offset, len(data))
	}
	return data[offset : offset+length], nil
}

// recordSize returns the packed size of a fixed-layout record type.
func recordSize[T any]() int64 {
	var zero T
	return int64(binary.Size(&zero))
}
