// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"orbit/internal/fusion"
	"orbit/internal/scene"
)

/*
UDP Packet Structure (BigEndian)

+------------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description              |
|-------------------|----------------|--------------|--------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing |
| Timestamp         | int64          | 8            | Nanoseconds since epoch  |
| Frame Seq         | uint64         | 8            | Scene frame counter      |
| Mode              | uint8          | 1            | 0 controls, 1 fused      |
| Option            | uint8          | 1            | Material option          |
| Bands             | [4]float32     | 16           | Band energies B0..B3     |
| Node Count        | uint16         | 2            | Number of nodes (N)      |
| Nodes             | N * 5 float32  | N * 20       | scale, w, x, y, z        |
+------------------------------------------------------------------------------+

Nodes are in the scene's fixed order: whale, fin left, fin right,
astronaut, inner ring, outer ring.
*/

// headerSize covers everything before the node records.
const headerSize = 4 + 8 + 8 + 1 + 1 + 16 + 2

const nodeSize = 5 * 4

// ErrShortPacket is returned when a packet is smaller than its header claims.
var ErrShortPacket = errors.New("udp: short packet")

// Node is one node record.
type Node struct {
	Scale       float32
	Orientation [4]float32
}

// Packet is a decoded frame packet.
type Packet struct {
	Sequence  uint32
	Timestamp int64
	FrameSeq  uint64
	Mode      uint8
	Option    uint8
	Bands     [4]float32
	Nodes     []Node
}

type header struct {
	Sequence  uint32
	Timestamp int64
	FrameSeq  uint64
	Mode      uint8
	Option    uint8
	Bands     [4]float32
	NodeCount uint16
}

// encodePacket writes one frame into buf, which is reset first.
func encodePacket(buf *bytes.Buffer, seq uint32, timestamp int64, f scene.Frame) error {
	buf.Reset()

	h := header{
		Sequence:  seq,
		Timestamp: timestamp,
		FrameSeq:  f.Seq,
		Option:    uint8(f.Option),
		NodeCount: uint16(len(f.Nodes)),
	}
	if f.Mode == fusion.ModeFused.String() {
		h.Mode = 1
	}
	for i, b := range f.Bands {
		h.Bands[i] = float32(b)
	}
	if err := binary.Write(buf, binary.BigEndian, h); err != nil {
		return err
	}

	for _, n := range f.Nodes {
		rec := Node{Scale: float32(n.Scale)}
		for i, v := range n.Orientation {
			rec.Orientation[i] = float32(v)
		}
		if err := binary.Write(buf, binary.BigEndian, rec); err != nil {
			return err
		}
	}
	return nil
}

// DecodePacket parses a frame packet.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < headerSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(data))
	}

	r := bytes.NewReader(data)
	var h header
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return Packet{}, err
	}
	if want := headerSize + int(h.NodeCount)*nodeSize; len(data) < want {
		return Packet{}, fmt.Errorf("%w: %d bytes, want %d", ErrShortPacket, len(data), want)
	}

	p := Packet{
		Sequence:  h.Sequence,
		Timestamp: h.Timestamp,
		FrameSeq:  h.FrameSeq,
		Mode:      h.Mode,
		Option:    h.Option,
		Bands:     h.Bands,
		Nodes:     make([]Node, h.NodeCount),
	}
	if err := binary.Read(r, binary.BigEndian, p.Nodes); err != nil && !errors.Is(err, io.EOF) {
		return Packet{}, err
	}
	return p, nil
}
