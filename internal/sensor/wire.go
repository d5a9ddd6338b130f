package sensor

import (
	"encoding/binary"
	"fmt"
)

// PacketSize is the fixed length of a sensor packet on the wire: a
// 2-byte big-endian sensor id followed by an 8-byte big-endian
// IEEE-754 double. Packets are length-delimited by agreement; there
// is no framing byte and no length prefix.
const PacketSize = 10

// ErrShortPacket is returned by Decode when given fewer than
// PacketSize bytes.
var ErrShortPacket = fmt.Errorf("sensor: short packet, want %d bytes", PacketSize)

// Decode parses a PacketSize-byte wire packet into a sensor id and
// value. The timestamp is not part of the wire format; the caller
// stamps it at read time via New.
//
// Both fields are encoded big-endian. The upstream source encodes the
// value in native byte order (a raw memcpy of a C double); that quirk
// is not reproduced here; gateway and simulator agree on big-endian
// for both fields.
func Decode(packet []byte) (sensorID uint16, value float64, err error) {
	if len(packet) < PacketSize {
		return 0, 0, ErrShortPacket
	}
	sensorID = binary.BigEndian.Uint16(packet[0:2])
	bits := binary.BigEndian.Uint64(packet[2:10])
	value = float64FromBits(bits)
	return sensorID, value, nil
}

// Encode writes sensorID and value into a freshly allocated
// PacketSize-byte packet, using the same big-endian encoding Decode
// expects. Used by the simulator and by tests.
func Encode(sensorID uint16, value float64) []byte {
	packet := make([]byte, PacketSize)
	binary.BigEndian.PutUint16(packet[0:2], sensorID)
	binary.BigEndian.PutUint64(packet[2:10], float64ToBits(value))
	return packet
}
