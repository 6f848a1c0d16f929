package zk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/roach88/rollcall/internal/device"
)

// Command codes spoken by the terminal.
const (
	cmdConnect     = 1000
	cmdExit        = 1001
	cmdAckOK       = 2000
	cmdAckError    = 2001
	cmdAckData     = 2002
	cmdAckUnauth   = 1005
	cmdPrepareData = 1500
	cmdData        = 1501
	cmdFreeData    = 1502
	cmdAttLogRead  = 13
	cmdUsersRead   = 9
)

// Wire sizes. Every TCP frame is magic + u32 length + payload; every
// payload is an 8-byte header (cmd, checksum, session, reply, all u16
// little-endian) followed by data.
const (
	headerSize        = 8
	attendanceRecSize = 40
	userRecSize       = 72
)

var tcpMagic = []byte{0x50, 0x50, 0x82, 0x7d}

// frame is one decoded protocol message.
type frame struct {
	cmd     uint16
	session uint16
	reply   uint16
	data    []byte
}

// checksum computes the ones-complement sum of 16-bit little-endian words
// over a payload whose checksum field is zeroed.
func checksum(p []byte) uint16 {
	var sum uint32
	for len(p) > 1 {
		sum += uint32(binary.LittleEndian.Uint16(p))
		p = p[2:]
	}
	if len(p) == 1 {
		sum += uint32(p[0])
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return uint16(^sum)
}

// encodeFrame builds a full TCP frame for a command.
func encodeFrame(f frame) []byte {
	payload := make([]byte, headerSize+len(f.data))
	binary.LittleEndian.PutUint16(payload[0:2], f.cmd)
	// checksum field left zero while summing
	binary.LittleEndian.PutUint16(payload[4:6], f.session)
	binary.LittleEndian.PutUint16(payload[6:8], f.reply)
	copy(payload[headerSize:], f.data)
	binary.LittleEndian.PutUint16(payload[2:4], checksum(payload))

	out := make([]byte, 0, len(tcpMagic)+4+len(payload))
	out = append(out, tcpMagic...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	out = append(out, payload...)
	return out
}

// decodePayload parses the payload of a received frame.
func decodePayload(payload []byte) (frame, error) {
	if len(payload) < headerSize {
		return frame{}, fmt.Errorf("short payload: %d bytes", len(payload))
	}
	f := frame{
		cmd:     binary.LittleEndian.Uint16(payload[0:2]),
		session: binary.LittleEndian.Uint16(payload[4:6]),
		reply:   binary.LittleEndian.Uint16(payload[6:8]),
	}
	if len(payload) > headerSize {
		f.data = append([]byte(nil), payload[headerSize:]...)
	}
	return f, nil
}

// decodeTime unpacks the terminal's packed timestamp format: a base-60/
// base-31 positional encoding counted from 2000-01-01, in device-local time.
func decodeTime(packed uint32, loc *time.Location) time.Time {
	t := packed
	sec := int(t % 60)
	t /= 60
	min := int(t % 60)
	t /= 60
	hour := int(t % 24)
	t /= 24
	day := int(t%31) + 1
	t /= 31
	month := time.Month(t%12) + 1
	t /= 12
	year := int(t) + 2000
	return time.Date(year, month, day, hour, min, sec, 0, loc)
}

// encodeTime packs a timestamp in the terminal's format. Inverse of
// decodeTime for in-range values.
func encodeTime(t time.Time) uint32 {
	packed := uint32(t.Year() - 2000)
	packed = packed*12 + uint32(t.Month()-1)
	packed = packed*31 + uint32(t.Day()-1)
	packed = packed*24 + uint32(t.Hour())
	packed = packed*60 + uint32(t.Minute())
	packed = packed*60 + uint32(t.Second())
	return packed
}

// decodeName converts raw name bytes to a string: NUL-trimmed, UTF-8 if
// valid, Latin-1 otherwise (older firmwares ship unlabeled single-byte
// encodings).
func decodeName(raw []byte) string {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

// parsePersonID extracts the numeric person id from a NUL-padded digit
// field, falling back to the device's internal uid when the field is
// empty or non-numeric.
func parsePersonID(raw []byte, uid uint16) int64 {
	s := string(raw)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil && id > 0 {
		return id
	}
	return int64(uid)
}

// parseAttendance splits a raw attendance buffer into events.
// Trailing partial records are ignored.
func parseAttendance(data []byte, loc *time.Location) []device.Event {
	events := make([]device.Event, 0, len(data)/attendanceRecSize)
	for len(data) >= attendanceRecSize {
		rec := data[:attendanceRecSize]
		data = data[attendanceRecSize:]

		uid := binary.LittleEndian.Uint16(rec[0:2])
		personID := parsePersonID(rec[2:26], uid)
		status := rec[26]
		packed := binary.LittleEndian.Uint32(rec[27:31])

		events = append(events, device.Event{
			PersonID: personID,
			Time:     decodeTime(packed, loc),
			Status:   status,
		})
	}
	return events
}

// parseUsers splits a raw user-table buffer into users.
func parseUsers(data []byte) []device.User {
	users := make([]device.User, 0, len(data)/userRecSize)
	for len(data) >= userRecSize {
		rec := data[:userRecSize]
		data = data[userRecSize:]

		uid := binary.LittleEndian.Uint16(rec[0:2])
		name := decodeName(rec[11:35])
		personID := parsePersonID(rec[48:72], uid)

		users = append(users, device.User{ID: personID, Name: name})
	}
	return users
}
