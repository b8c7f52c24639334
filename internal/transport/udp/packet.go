// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

/*
Packet layout (BigEndian):

	|<- 4 ->|<---- 8 ---->|<- 4 ->|<- 2 ->|<---- N * 4 ---->|
	+-------+-------------+-------+-------+-----------------+
	|  Seq  |  Timestamp  | Volume| Count |      Bands      |
	|uint32 |    int64    |float32|uint16 |  N * float32    |
	+-------+-------------+-------+-------+-----------------+

Seq increases by one per packet sent, Timestamp is nanoseconds since the
epoch, Volume is the gated volume in [0,1] and Count is the number of bands.
*/
const headerSize = 4 + 8 + 4 + 2

// MaxBands is the largest band count a packet can carry.
const MaxBands = math.MaxUint16

var errShortPacket = errors.New("udp: short packet")

// Packet is a decoded snapshot datagram.
type Packet struct {
	Seq       uint32
	Timestamp int64
	Volume    float32
	Bands     []float32
}

// PacketSize returns the encoded size of a packet with n bands.
func PacketSize(n int) int {
	return headerSize + 4*n
}

// AppendPacket appends the encoding of one snapshot to dst. It does not
// allocate when dst has room for PacketSize(len(bands)) more bytes.
func AppendPacket(dst []byte, seq uint32, timestamp int64, volume float64, bands []float64) []byte {
	n := min(len(bands), MaxBands)
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(timestamp))
	dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(volume)))
	dst = binary.BigEndian.AppendUint16(dst, uint16(n))
	for _, v := range bands[:n] {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(v)))
	}
	return dst
}

// DecodePacket parses a datagram produced by AppendPacket.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < headerSize {
		return Packet{}, fmt.Errorf("%w: %d bytes, header needs %d", errShortPacket, len(b), headerSize)
	}
	p := Packet{
		Seq:       binary.BigEndian.Uint32(b[0:]),
		Timestamp: int64(binary.BigEndian.Uint64(b[4:])),
		Volume:    math.Float32frombits(binary.BigEndian.Uint32(b[12:])),
	}
	n := int(binary.BigEndian.Uint16(b[16:]))
	if len(b) < PacketSize(n) {
		return Packet{}, fmt.Errorf("%w: %d bytes for %d bands", errShortPacket, len(b), n)
	}
	p.Bands = make([]float32, n)
	for i := range p.Bands {
		p.Bands[i] = math.Float32frombits(binary.BigEndian.Uint32(b[headerSize+4*i:]))
	}
	return p, nil
}
