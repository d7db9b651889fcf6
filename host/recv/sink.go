package recv

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/golang/protobuf/proto"

	"smntmb/config"
	"smntmb/protocol"
)

// Sink consumes sample blocks.
type Sink interface {
	WriteBlock(blk *protocol.SampleBlock) error
	Close() error
}

// RawSink writes the wire bytes unchanged, so a recording can be replayed
// through a Receiver.
type RawSink struct {
	w *bufio.Writer
	c io.Closer
}

func NewRawSink(w io.WriteCloser) *RawSink {
	return &RawSink{w: bufio.NewWriter(w), c: w}
}

func (s *RawSink) WriteBlock(blk *protocol.SampleBlock) error {
	_, err := s.w.Write(blk.Samples)
	return err
}

func (s *RawSink) Close() error {
	err := s.w.Flush()
	if cerr := s.c.Close(); err == nil {
		err = cerr
	}
	return err
}

// CSVSink writes one row per sample: block, index, raw value, volts and
// the bias-free value scaled to -1..1.
type CSVSink struct {
	w    *csv.Writer
	c    io.Closer
	vref float64
	head bool
}

func NewCSVSink(w io.WriteCloser, vref float64) *CSVSink {
	return &CSVSink{w: csv.NewWriter(w), c: w, vref: vref}
}

func (s *CSVSink) WriteBlock(blk *protocol.SampleBlock) error {
	samples, err := blk.Decode()
	if err != nil {
		return err
	}
	if !s.head {
		if err := s.w.Write([]string{"block", "index", "raw", "volts", "norm"}); err != nil {
			return err
		}
		s.head = true
	}
	seq := strconv.FormatUint(blk.Seq, 10)
	norm := protocol.Normalize(samples)
	row := make([]string, 5)
	for i, v := range samples {
		row[0] = seq
		row[1] = strconv.Itoa(i)
		row[2] = strconv.Itoa(int(v))
		row[3] = strconv.FormatFloat(protocol.Voltage(v, s.vref), 'f', 4, 64)
		row[4] = strconv.FormatFloat(norm[i], 'f', 4, 64)
		if err := s.w.Write(row); err != nil {
			return err
		}
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVSink) Close() error {
	s.w.Flush()
	err := s.w.Error()
	if cerr := s.c.Close(); err == nil {
		err = cerr
	}
	return err
}

// ProtoSink writes varint length-prefixed SampleBlock messages.
type ProtoSink struct {
	w *bufio.Writer
	c io.Closer
}

func NewProtoSink(w io.WriteCloser) *ProtoSink {
	return &ProtoSink{w: bufio.NewWriter(w), c: w}
}

func (s *ProtoSink) WriteBlock(blk *protocol.SampleBlock) error {
	data, err := protocol.MarshalBlock(blk)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(proto.EncodeVarint(uint64(len(data)))); err != nil {
		return err
	}
	_, err = s.w.Write(data)
	return err
}

func (s *ProtoSink) Close() error {
	err := s.w.Flush()
	if cerr := s.c.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadProtoBlocks parses a stream written by ProtoSink.
func ReadProtoBlocks(data []byte) ([]*protocol.SampleBlock, error) {
	var blocks []*protocol.SampleBlock
	for len(data) > 0 {
		size, n := proto.DecodeVarint(data)
		if n == 0 || uint64(len(data)-n) < size {
			return blocks, fmt.Errorf("recv: truncated block record at %d blocks", len(blocks))
		}
		data = data[n:]
		blk, err := protocol.UnmarshalBlock(data[:size])
		if err != nil {
			return blocks, err
		}
		blocks = append(blocks, blk)
		data = data[size:]
	}
	return blocks, nil
}

// OpenFileSink creates the file at path and wraps it in the sink for format.
func OpenFileSink(path, format string) (Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("recv: %w", err)
	}
	switch format {
	case config.FormatRaw, "":
		return NewRawSink(f), nil
	case config.FormatCSV:
		return NewCSVSink(f, protocol.DefaultVRef), nil
	case config.FormatProto:
		return NewProtoSink(f), nil
	}
	f.Close()
	os.Remove(path)
	return nil, fmt.Errorf("recv: unknown record format %q", format)
}
