package protocol

import (
	"errors"
	"time"

	"github.com/golang/protobuf/proto"
)

var ErrChecksum = errors.New("protocol: block checksum mismatch")

// SampleBlock is one capture batch as recorded and published by the host.
type SampleBlock struct {
	Seq        uint64 `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
	SampleRate uint32 `protobuf:"varint,2,opt,name=sample_rate,json=sampleRate,proto3" json:"sample_rate,omitempty"`
	// Samples holds the wire bytes unchanged.
	Samples    []byte `protobuf:"bytes,3,opt,name=samples,proto3" json:"samples,omitempty"`
	Crc        uint32 `protobuf:"varint,4,opt,name=crc,proto3" json:"crc,omitempty"`
	ReceivedAt int64  `protobuf:"varint,5,opt,name=received_at,json=receivedAt,proto3" json:"received_at,omitempty"`
	Device     string `protobuf:"bytes,6,opt,name=device,proto3" json:"device,omitempty"`
}

func (m *SampleBlock) Reset()         { *m = SampleBlock{} }
func (m *SampleBlock) String() string { return proto.CompactTextString(m) }
func (*SampleBlock) ProtoMessage()    {}

// NewSampleBlock wraps raw wire bytes. raw is copied.
func NewSampleBlock(seq uint64, rate uint32, raw []byte, device string, at time.Time) *SampleBlock {
	data := append([]byte(nil), raw...)
	return &SampleBlock{
		Seq:        seq,
		SampleRate: rate,
		Samples:    data,
		Crc:        uint32(CRC16(data)),
		ReceivedAt: at.UnixNano(),
		Device:     device,
	}
}

// Decode verifies the checksum and returns the samples.
func (m *SampleBlock) Decode() ([]uint16, error) {
	if uint32(CRC16(m.Samples)) != m.Crc {
		return nil, ErrChecksum
	}
	return DecodeSamples(m.Samples)
}

// Duration is the acquisition time the block covers.
func (m *SampleBlock) Duration() time.Duration {
	if m.SampleRate == 0 {
		return 0
	}
	n := len(m.Samples) / SampleBytes
	return time.Duration(n) * time.Second / time.Duration(m.SampleRate)
}

// MarshalBlock serializes a block.
func MarshalBlock(m *SampleBlock) ([]byte, error) {
	return proto.Marshal(m)
}

// UnmarshalBlock parses a serialized block and verifies its checksum.
func UnmarshalBlock(data []byte) (*SampleBlock, error) {
	m := &SampleBlock{}
	if err := proto.Unmarshal(data, m); err != nil {
		return nil, err
	}
	if uint32(CRC16(m.Samples)) != m.Crc {
		return nil, ErrChecksum
	}
	return m, nil
}
