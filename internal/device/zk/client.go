// Package zk implements the TCP wire protocol of ZKTeco-class attendance
// terminals: magic-prefixed frames with a command/checksum/session/reply
// header, a connect/exit handshake, and buffered bulk reads of the
// attendance log and the user table.
package zk

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/roach88/rollcall/internal/device"
)

// DefaultTimeout bounds connect and per-read waits when the caller does
// not supply one.
const DefaultTimeout = 5 * time.Second

// Client dials a terminal. Implements device.Source.
type Client struct {
	// Addr is host:port; terminals listen on 4370 by default.
	Addr string
	// Timeout bounds dialing and each frame read. Zero means DefaultTimeout.
	Timeout time.Duration
	// Location for decoding device-local timestamps. Nil means time.Local.
	Location *time.Location
}

// Connect dials the terminal and performs the connect handshake.
// Implements device.Source.
func (c *Client) Connect(ctx context.Context) (device.Session, error) {
	return c.Dial(ctx)
}

// Dial is Connect with a concrete session type, for callers that need the
// user-table read on top of the device.Session surface.
func (c *Client) Dial(ctx context.Context) (*Session, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}

	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.Addr, err)
	}

	s := &Session{conn: conn, timeout: timeout, loc: loc}
	resp, err := s.roundTrip(ctx, frame{cmd: cmdConnect})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect handshake: %w", err)
	}
	if resp.cmd == cmdAckUnauth {
		conn.Close()
		return nil, fmt.Errorf("terminal %s requires a comm key", c.Addr)
	}
	if resp.cmd != cmdAckOK {
		conn.Close()
		return nil, fmt.Errorf("connect refused: command %d", resp.cmd)
	}
	s.session = resp.session

	return s, nil
}

// Session is one open terminal connection. Not safe for concurrent use;
// the poller issues one command at a time.
type Session struct {
	conn    net.Conn
	timeout time.Duration
	loc     *time.Location
	session uint16
	reply   uint16
}

// Attendance reads the terminal's full attendance log.
func (s *Session) Attendance(ctx context.Context) ([]device.Event, error) {
	data, err := s.readBulk(ctx, cmdAttLogRead)
	if err != nil {
		return nil, fmt.Errorf("read attendance: %w", err)
	}
	return parseAttendance(data, s.loc), nil
}

// Users reads the terminal's user table.
func (s *Session) Users(ctx context.Context) ([]device.User, error) {
	data, err := s.readBulk(ctx, cmdUsersRead)
	if err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}
	return parseUsers(data), nil
}

// Close sends the exit command and closes the connection. The exit is
// best-effort; the terminal drops stale sessions on its own.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	_, _ = s.roundTrip(context.Background(), frame{cmd: cmdExit})
	err := s.conn.Close()
	s.conn = nil
	return err
}

// roundTrip sends one command frame and reads one response frame.
func (s *Session) roundTrip(ctx context.Context, f frame) (frame, error) {
	f.session = s.session
	f.reply = s.reply
	s.reply++

	if err := s.send(ctx, f); err != nil {
		return frame{}, err
	}
	return s.recv(ctx)
}

// readBulk issues a read command and collects the response, following the
// prepare-data/data chunking the terminal uses for large payloads:
//
//	CMD_PREPARE_DATA (u32 total size) → CMD_DATA chunks → CMD_ACK_OK
//
// Small payloads arrive inline in a single CMD_ACK_DATA or CMD_ACK_OK.
func (s *Session) readBulk(ctx context.Context, cmd uint16) ([]byte, error) {
	resp, err := s.roundTrip(ctx, frame{cmd: cmd})
	if err != nil {
		return nil, err
	}

	var buf []byte
	var expected uint32
	for {
		switch resp.cmd {
		case cmdAckData, cmdAckOK:
			if len(buf) == 0 {
				return stripSizePrefix(resp.data), nil
			}
			if expected > 0 && uint32(len(buf)) < expected {
				return nil, fmt.Errorf("short bulk read: got %d of %d bytes", len(buf), expected)
			}
			// Release the device-side buffer; failure only matters to the
			// device's memory, not to the data already read.
			_, _ = s.roundTrip(ctx, frame{cmd: cmdFreeData})
			return stripSizePrefix(buf), nil
		case cmdPrepareData:
			if len(resp.data) >= 4 {
				expected = binary.LittleEndian.Uint32(resp.data[:4])
			}
		case cmdData:
			buf = append(buf, resp.data...)
		case cmdAckError:
			return nil, fmt.Errorf("terminal rejected command %d", cmd)
		default:
			return nil, fmt.Errorf("unexpected response command %d", resp.cmd)
		}

		resp, err = s.recv(ctx)
		if err != nil {
			return nil, err
		}
	}
}

// stripSizePrefix removes the u32 length prefix some firmwares put in
// front of bulk record data.
func stripSizePrefix(data []byte) []byte {
	if len(data) >= 4 {
		if size := binary.LittleEndian.Uint32(data[:4]); size == uint32(len(data)-4) {
			return data[4:]
		}
	}
	return data
}

func (s *Session) send(ctx context.Context, f frame) error {
	if err := s.setDeadline(ctx); err != nil {
		return err
	}
	if _, err := s.conn.Write(encodeFrame(f)); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (s *Session) recv(ctx context.Context) (frame, error) {
	if err := s.setDeadline(ctx); err != nil {
		return frame{}, err
	}

	prefix := make([]byte, len(tcpMagic)+4)
	if _, err := io.ReadFull(s.conn, prefix); err != nil {
		return frame{}, fmt.Errorf("read frame prefix: %w", err)
	}
	for i, b := range tcpMagic {
		if prefix[i] != b {
			return frame{}, fmt.Errorf("bad frame magic % x", prefix[:len(tcpMagic)])
		}
	}

	size := binary.LittleEndian.Uint32(prefix[len(tcpMagic):])
	if size < headerSize || size > 1<<20 {
		return frame{}, fmt.Errorf("implausible frame size %d", size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(s.conn, payload); err != nil {
		return frame{}, fmt.Errorf("read frame payload: %w", err)
	}
	return decodePayload(payload)
}

// setDeadline applies the tighter of the session timeout and the context
// deadline to the next I/O operation.
func (s *Session) setDeadline(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return s.conn.SetDeadline(deadline)
}
