package dynamixel

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Protocol selects the packet format spoken on the bus.
type Protocol int

const (
	Protocol1 Protocol = 1 // AX/MX/RX legacy firmware, additive checksum
	Protocol2 Protocol = 2 // X series, CRC-16 and byte stuffing
)

// Instructions shared by both protocol versions.
const (
	InstPing  = 0x01
	InstRead  = 0x02
	InstWrite = 0x03

	instStatus = 0x55 // Protocol 2.0 status packets only
)

// BroadcastID addresses every servo on the bus; no status packet is returned.
const BroadcastID = 0xFE

// Status is a decoded status packet.
type Status struct {
	ID     uint8
	Error  uint8
	Params []byte
}

var (
	errShortPacket = errors.New("packet too short")
	errHeader      = errors.New("invalid header")
)

// Valid reports whether p is a supported protocol version.
func (p Protocol) Valid() bool {
	return p == Protocol1 || p == Protocol2
}

func (p Protocol) String() string {
	return fmt.Sprintf("protocol %d.0", int(p))
}

// BuildPacket constructs an instruction packet.
func BuildPacket(p Protocol, id, inst uint8, params []byte) []byte {
	if p == Protocol2 {
		return buildPacket2(id, inst, params)
	}
	return buildPacket1(id, inst, params)
}

// ParseStatus validates a complete status packet as returned by findPacket.
func ParseStatus(p Protocol, pkt []byte) (Status, error) {
	if p == Protocol2 {
		return parseStatus2(pkt)
	}
	return parseStatus1(pkt)
}

// readParams encodes the parameters of a READ instruction.
func readParams(p Protocol, addr uint16, length uint16) []byte {
	if p == Protocol2 {
		params := make([]byte, 4)
		binary.LittleEndian.PutUint16(params[0:], addr)
		binary.LittleEndian.PutUint16(params[2:], length)
		return params
	}
	return []byte{byte(addr), byte(length)}
}

// writeParams encodes the parameters of a WRITE instruction.
func writeParams(p Protocol, addr uint16, data []byte) []byte {
	if p == Protocol2 {
		params := make([]byte, 2+len(data))
		binary.LittleEndian.PutUint16(params[0:], addr)
		copy(params[2:], data)
		return params
	}
	params := make([]byte, 1+len(data))
	params[0] = byte(addr)
	copy(params[1:], data)
	return params
}

// findPacket looks for one complete status packet in buf.
// It returns the packet bounds, or ok=false if more bytes are needed.
func findPacket(p Protocol, buf []byte) (start, end int, ok bool) {
	if p == Protocol2 {
		return findPacket2(buf)
	}
	return findPacket1(buf)
}

// --- Protocol 1.0 ---
//
// FF FF ID LEN INST/ERR PARAMS... CHECKSUM, LEN = len(PARAMS) + 2,
// CHECKSUM = ^(ID + LEN + INST + sum(PARAMS)).

func checksum1(body []byte) byte {
	var sum byte
	for _, b := range body {
		sum += b
	}
	return ^sum
}

func buildPacket1(id, inst uint8, params []byte) []byte {
	pkt := make([]byte, 0, 6+len(params))
	pkt = append(pkt, 0xFF, 0xFF, id, byte(len(params)+2), inst)
	pkt = append(pkt, params...)
	return append(pkt, checksum1(pkt[2:]))
}

func parseStatus1(pkt []byte) (Status, error) {
	if len(pkt) < 6 {
		return Status{}, errShortPacket
	}
	if pkt[0] != 0xFF || pkt[1] != 0xFF {
		return Status{}, errHeader
	}
	length := int(pkt[3])
	if len(pkt) != length+4 {
		return Status{}, fmt.Errorf("length mismatch: expected %d, got %d", length+4, len(pkt))
	}
	if want := checksum1(pkt[2 : len(pkt)-1]); pkt[len(pkt)-1] != want {
		return Status{}, fmt.Errorf("checksum error: expected %02X, got %02X", want, pkt[len(pkt)-1])
	}

	st := Status{ID: pkt[2], Error: pkt[4]}
	if length > 2 {
		st.Params = append([]byte(nil), pkt[5:len(pkt)-1]...)
	}
	return st, nil
}

func findPacket1(buf []byte) (int, int, bool) {
	for i := 0; i+3 < len(buf); i++ {
		if buf[i] != 0xFF || buf[i+1] != 0xFF || buf[i+2] == 0xFF {
			continue
		}
		end := i + 4 + int(buf[i+3])
		if end > len(buf) {
			return 0, 0, false
		}
		return i, end, true
	}
	return 0, 0, false
}

// --- Protocol 2.0 ---
//
// FF FF FD 00 ID LEN_L LEN_H INST PARAMS... CRC_L CRC_H,
// LEN = 1 (INST) + len(stuffed PARAMS) + 2 (CRC).

var crcTable [256]uint16

func init() {
	poly := uint16(0x8005)
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		crcTable[i] = crc
	}
}

// UpdateCRC folds data into a running CRC-16 (poly 0x8005, no reflection).
func UpdateCRC(crc uint16, data []byte) uint16 {
	for _, b := range data {
		i := ((crc >> 8) ^ uint16(b)) & 0xFF
		crc = (crc << 8) ^ crcTable[i]
	}
	return crc
}

// StuffParams inserts an extra 0xFD after every FF FF FD sequence so that
// parameters can never be mistaken for a packet header.
func StuffParams(params []byte) []byte {
	stuffed := make([]byte, 0, len(params)+2)
	ffCount := 0
	for _, b := range params {
		stuffed = append(stuffed, b)
		if b == 0xFF {
			ffCount++
			continue
		}
		if ffCount >= 2 && b == 0xFD {
			stuffed = append(stuffed, 0xFD)
		}
		ffCount = 0
	}
	return stuffed
}

// DestuffParams reverses StuffParams: FF FF FD FD -> FF FF FD.
func DestuffParams(data []byte) []byte {
	result := make([]byte, 0, len(data))
	ffCount := 0
	for i := 0; i < len(data); i++ {
		b := data[i]
		result = append(result, b)
		if b == 0xFF {
			ffCount++
			continue
		}
		if ffCount >= 2 && b == 0xFD && i+1 < len(data) && data[i+1] == 0xFD {
			i++
		}
		ffCount = 0
	}
	return result
}

func buildPacket2(id, inst uint8, params []byte) []byte {
	stuffed := StuffParams(params)
	length := 1 + len(stuffed) + 2

	pkt := make([]byte, 0, 7+length)
	pkt = append(pkt, 0xFF, 0xFF, 0xFD, 0x00, id, byte(length), byte(length>>8), inst)
	pkt = append(pkt, stuffed...)

	crc := UpdateCRC(0, pkt)
	return append(pkt, byte(crc), byte(crc>>8))
}

func parseStatus2(pkt []byte) (Status, error) {
	// H(4)+ID(1)+LEN(2)+INST(1)+ERR(1)+CRC(2)
	if len(pkt) < 11 {
		return Status{}, errShortPacket
	}
	if pkt[0] != 0xFF || pkt[1] != 0xFF || pkt[2] != 0xFD || pkt[3] != 0x00 {
		return Status{}, errHeader
	}
	length := int(binary.LittleEndian.Uint16(pkt[5:7]))
	if len(pkt) != length+7 {
		return Status{}, fmt.Errorf("length mismatch: expected %d, got %d", length+7, len(pkt))
	}
	got := binary.LittleEndian.Uint16(pkt[len(pkt)-2:])
	if want := UpdateCRC(0, pkt[:len(pkt)-2]); got != want {
		return Status{}, fmt.Errorf("CRC error: expected %04X, got %04X", want, got)
	}
	if pkt[7] != instStatus {
		return Status{}, fmt.Errorf("unexpected instruction %02X in status packet", pkt[7])
	}

	st := Status{ID: pkt[4], Error: pkt[8]}
	if len(pkt) > 11 {
		st.Params = DestuffParams(pkt[9 : len(pkt)-2])
	}
	return st, nil
}

func findPacket2(buf []byte) (int, int, bool) {
	for i := 0; i+6 < len(buf); i++ {
		if buf[i] != 0xFF || buf[i+1] != 0xFF || buf[i+2] != 0xFD || buf[i+3] != 0x00 {
			continue
		}
		end := i + 7 + int(binary.LittleEndian.Uint16(buf[i+5:i+7]))
		if end > len(buf) {
			return 0, 0, false
		}
		return i, end, true
	}
	return 0, 0, false
}
