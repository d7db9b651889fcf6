package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smntmb/core"
	"smntmb/host/recv"
	"smntmb/protocol"
)

type countSink struct {
	samples [][]uint16
}

func (s *countSink) WriteBlock(blk *protocol.SampleBlock) error {
	samples, err := blk.Decode()
	if err != nil {
		return err
	}
	s.samples = append(s.samples, samples)
	return nil
}

func (s *countSink) Close() error { return nil }

func TestSimSourceFeedsReceiver(t *testing.T) {
	cfg := core.DefaultCaptureConfig()
	cfg.MaxTransfers = 64
	cfg.SamplesPerBatch = 256
	src, err := newSimSource(cfg, core.FaultReport, 16000000, 5)
	require.NoError(t, err)

	r, err := recv.New(src, recv.Options{BlockSamples: cfg.SamplesPerBatch, StopOnEOF: true})
	require.NoError(t, err)
	sink := &countSink{}
	r.AddSink("count", sink)
	require.NoError(t, r.Run(context.Background()))

	require.Len(t, sink.samples, 5)
	n := 0
	for _, block := range sink.samples {
		for _, v := range block {
			require.Equal(t, uint16(n)&protocol.SampleMax, v)
			n++
		}
	}
	assert.NoError(t, src.Close())
}

func TestSimSourceHaltPolicy(t *testing.T) {
	cfg := core.DefaultCaptureConfig()
	cfg.MaxTransfers = 64
	cfg.SamplesPerBatch = 256
	src, err := newSimSource(cfg, core.FaultHalt, 16000000, 0)
	require.NoError(t, err)
	assert.Equal(t, core.FaultHalt, src.pipeline.Coordinator().Policy())

	buf := make([]byte, 64)
	_, err = src.Read(buf)
	require.NoError(t, err)

	src.board.LDMA.InjectError()
	assert.True(t, src.halted)
	src.pending = nil
	_, err = src.Read(buf)
	require.ErrorIs(t, err, core.ErrTransferFault)
	assert.Contains(t, err.Error(), "halted")
	assert.NoError(t, src.Close())
}

func TestVersionString(t *testing.T) {
	assert.Contains(t, versionString(), protocol.Version)
}
