package challenge

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

const recordVersionV1 = 1

var errRecordCorrupt = errors.New("challenge record corrupt")

func encodeRecord(rec *Record) ([]byte, error) {
	if len(rec.Subject) > 65535 || len(rec.Destination) > 65535 {
		return nil, errors.New("challenge record field too long")
	}

	var buf bytes.Buffer
	buf.Grow(1 + 2 + 2 + 8 + 8 + 32 + 4 + len(rec.Subject) + len(rec.Destination))
	buf.WriteByte(recordVersionV1)

	fixed := []interface{}{
		rec.Attempts,
		rec.MaxAttempts,
		rec.IssuedAt.UnixMilli(),
		rec.ExpiresAt.UnixMilli(),
	}
	for _, v := range fixed {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}
	buf.Write(rec.SecretHash[:])

	for _, s := range []string{rec.Subject, rec.Destination} {
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(s))); err != nil {
			return nil, err
		}
		buf.WriteString(s)
	}

	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Record{}, errRecordCorrupt
	}
	if version != recordVersionV1 {
		return Record{}, fmt.Errorf("%w: version %d", errRecordCorrupt, version)
	}

	var (
		rec             Record
		issued, expires int64
	)
	for _, v := range []interface{}{&rec.Attempts, &rec.MaxAttempts, &issued, &expires} {
		if err := binary.Read(reader, binary.BigEndian, v); err != nil {
			return Record{}, errRecordCorrupt
		}
	}
	rec.IssuedAt = time.UnixMilli(issued)
	rec.ExpiresAt = time.UnixMilli(expires)

	if _, err := io.ReadFull(reader, rec.SecretHash[:]); err != nil {
		return Record{}, errRecordCorrupt
	}

	fields := [2]string{}
	for i := range fields {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return Record{}, errRecordCorrupt
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return Record{}, errRecordCorrupt
		}
		fields[i] = string(raw)
	}
	rec.Subject, rec.Destination = fields[0], fields[1]

	if reader.Len() != 0 {
		return Record{}, errRecordCorrupt
	}
	return rec, nil
}
