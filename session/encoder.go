package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const sessionFormatVersionCurrent = 1

const flagMustChangePassword uint8 = 1 << 0

// ErrCorrupt marks a stored session blob that cannot be decoded. It is an
// integrity failure, never an authentication outcome.
var ErrCorrupt = errors.New("session record corrupt")

// Encode serializes a [Session] into the compact binary wire form stored in
// Redis. The session ID is the Redis key and is not part of the payload.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionCurrent)

	if len(s.Username) > 255 {
		return nil, errors.New("username too long")
	}
	buf.WriteByte(byte(len(s.Username)))
	buf.WriteString(s.Username)

	if len(s.Role) > 255 {
		return nil, errors.New("role too long")
	}
	buf.WriteByte(byte(len(s.Role)))
	buf.WriteString(s.Role)

	var flags uint8
	if s.MustChangePassword {
		flags |= flagMustChangePassword
	}
	buf.WriteByte(flags)

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.LastActive); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a stored session blob. Any malformation returns [ErrCorrupt].
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: empty payload", ErrCorrupt)
	}
	if version != sessionFormatVersionCurrent {
		return nil, fmt.Errorf("%w: unknown format version", ErrCorrupt)
	}

	s := &Session{}

	userLen, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated username length", ErrCorrupt)
	}
	username := make([]byte, userLen)
	if _, err := io.ReadFull(reader, username); err != nil {
		return nil, fmt.Errorf("%w: truncated username", ErrCorrupt)
	}
	s.Username = string(username)

	roleLen, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated role length", ErrCorrupt)
	}
	role := make([]byte, roleLen)
	if _, err := io.ReadFull(reader, role); err != nil {
		return nil, fmt.Errorf("%w: truncated role", ErrCorrupt)
	}
	s.Role = string(role)

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated flags", ErrCorrupt)
	}
	s.MustChangePassword = flags&flagMustChangePassword != 0

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: truncated creation timestamp", ErrCorrupt)
	}
	if err := binary.Read(reader, binary.BigEndian, &s.LastActive); err != nil {
		return nil, fmt.Errorf("%w: truncated activity timestamp", ErrCorrupt)
	}

	return s, nil
}
