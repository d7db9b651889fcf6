package sim

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smntmb/core"
)

func newPipeline(t *testing.T, cfg core.CaptureConfig) (*Board, *core.Pipeline, *core.Streamer) {
	t.Helper()
	b := NewBoard(DefaultClock)
	p, err := core.NewPipeline(cfg, b.Ports(), core.FaultReport)
	require.NoError(t, err)
	b.Attach(p)
	require.NoError(t, p.Init())
	return b, p, core.NewStreamer(p)
}

// run ticks the board and polls the streamer once per sample period,
// returning the first error.
func run(b *Board, s *core.Streamer, ticks int) error {
	for i := 0; i < ticks; i++ {
		b.Tick()
		if _, err := s.Poll(); err != nil {
			return err
		}
	}
	return nil
}

func decode(out []byte) []uint16 {
	samples := make([]uint16, len(out)/2)
	for i := range samples {
		samples[i] = binary.BigEndian.Uint16(out[2*i:])
	}
	return samples
}

func TestBoardStreamsSamplesInOrder(t *testing.T) {
	cfg := core.DefaultCaptureConfig()
	b, p, s := newPipeline(t, cfg)
	assert.Equal(t, uint32(8000), b.Timer.Top())

	require.NoError(t, p.StartSampling())
	require.NoError(t, run(b, s, 4*cfg.SamplesPerBatch))

	stats := p.Stats()
	assert.Equal(t, uint32(4), stats.Handoffs)
	assert.Zero(t, stats.Overruns)
	assert.Equal(t, uint32(3), p.Transmit().Blocks)
	assert.Equal(t, core.Buffer2, s.Stats.LastBuffer)

	samples := decode(b.USART.Output())
	require.GreaterOrEqual(t, len(samples), 3*cfg.SamplesPerBatch)
	for i, v := range samples {
		if v != uint16(i)&0xFFF {
			t.Fatalf("sample %d: got %#04x, want %#04x", i, v, uint16(i)&0xFFF)
		}
	}
	assert.Zero(t, b.ADC.Underflows)
	assert.Zero(t, b.ADC.Overflows)
}

func TestBoardSmallBatches(t *testing.T) {
	cfg := core.DefaultCaptureConfig()
	cfg.MaxTransfers = 8
	cfg.SamplesPerBatch = 24
	b, p, s := newPipeline(t, cfg)
	assert.Len(t, p.Capture().Ring(), 6)

	require.NoError(t, p.StartSampling())
	require.NoError(t, run(b, s, 24*10))

	assert.Equal(t, uint32(10), p.Stats().Handoffs)
	samples := decode(b.USART.Output())
	for i, v := range samples {
		require.Equal(t, uint16(i)&0xFFF, v, "sample %d", i)
	}
}

func TestBoardSlowSerialOverruns(t *testing.T) {
	cfg := core.DefaultCaptureConfig()
	b, p, s := newPipeline(t, cfg)
	b.SerialRate = 0.5

	require.NoError(t, p.StartSampling())
	err := run(b, s, 3*cfg.SamplesPerBatch)
	require.ErrorIs(t, err, core.ErrOverrun)
	assert.Equal(t, core.StateOverrun, p.State())
	assert.False(t, b.Timer.Enabled())
	assert.False(t, b.LDMA.Enabled(core.MicDMAChannel))
	assert.Equal(t, uint32(1), p.Stats().Handoffs)

	// Faster serial and a restart recover the stream.
	b.SerialRate = 4
	b.USART.TakeOutput()
	require.NoError(t, p.StartSampling())
	assert.False(t, b.LDMA.Enabled(core.SerialDMAChannel))
	require.NoError(t, run(b, s, 3*cfg.SamplesPerBatch))
	assert.Equal(t, core.StateBuffer1Pending, p.State())
	assert.Equal(t, uint32(1), p.Stats().Restarts)

	samples := decode(b.USART.Output())
	require.Len(t, samples, 2*cfg.SamplesPerBatch)
	for i := 1; i < len(samples); i++ {
		require.Equal(t, (samples[i-1]+1)&0xFFF, samples[i], "sample %d", i)
	}
}

func TestBoardConsumerNeverPolls(t *testing.T) {
	cfg := core.DefaultCaptureConfig()
	cfg.MaxTransfers = 16
	cfg.SamplesPerBatch = 32
	b, p, _ := newPipeline(t, cfg)

	require.NoError(t, p.StartSampling())
	b.Run(2 * cfg.SamplesPerBatch)
	assert.ErrorIs(t, p.Err(), core.ErrOverrun)
	assert.Equal(t, core.StateOverrun, p.State())
	assert.Empty(t, b.USART.Output())
}

func TestBoardLDMAFault(t *testing.T) {
	cfg := core.DefaultCaptureConfig()
	b, p, s := newPipeline(t, cfg)

	require.NoError(t, p.StartSampling())
	require.NoError(t, run(b, s, cfg.SamplesPerBatch+100))
	require.True(t, b.LDMA.Enabled(core.SerialDMAChannel))

	b.LDMA.InjectError()
	_, err := s.Poll()
	require.ErrorIs(t, err, core.ErrTransferFault)
	assert.True(t, p.Coordinator().Faulted())
	assert.False(t, b.LDMA.Enabled(core.MicDMAChannel))
	assert.False(t, b.LDMA.Enabled(core.SerialDMAChannel))
	assert.False(t, b.Timer.Enabled())

	require.ErrorIs(t, p.StartSampling(), core.ErrTransferFault)
	p.ResetFault()
	require.NoError(t, p.StartSampling())
	require.NoError(t, run(b, s, cfg.SamplesPerBatch))
	assert.Equal(t, core.StateBuffer1Pending, p.State())
}

func TestBoardStopSampling(t *testing.T) {
	cfg := core.DefaultCaptureConfig()
	b, p, s := newPipeline(t, cfg)

	require.NoError(t, p.StartSampling())
	require.NoError(t, run(b, s, cfg.SamplesPerBatch+10))
	p.StopSampling()

	assert.Equal(t, core.StateIdle, p.State())
	assert.False(t, b.Timer.Enabled())
	assert.False(t, b.LDMA.Enabled(core.MicDMAChannel))
	assert.False(t, b.LDMA.Enabled(core.SerialDMAChannel))

	conversions := b.ADC.Conversions
	b.Run(100)
	assert.Equal(t, conversions, b.ADC.Conversions)
}

func TestBoardStampsEventsWithSampleCount(t *testing.T) {
	cfg := core.DefaultCaptureConfig()
	cfg.SamplesPerBatch = 16
	cfg.MaxTransfers = 8
	b, p, s := newPipeline(t, cfg)
	core.ClearEventRing()
	defer core.ClearEventRing()

	require.NoError(t, p.StartSampling())
	require.NoError(t, run(b, s, cfg.SamplesPerBatch))

	var done []core.PipelineEvent
	for _, evt := range core.Events() {
		if evt.EventType == core.EvtCaptureDone {
			done = append(done, evt)
		}
	}
	require.Len(t, done, 1)
	assert.Equal(t, uint32(cfg.SamplesPerBatch), done[0].Clock)
	assert.Equal(t, uint8(core.Buffer1), done[0].Buffer)
	assert.Equal(t, uint32(2000), core.ClockFreq())
}

func TestBoardRepeatedStartKeepsPendingBuffer(t *testing.T) {
	cfg := core.DefaultCaptureConfig()
	cfg.MaxTransfers = 8
	cfg.SamplesPerBatch = 16
	b, p, s := newPipeline(t, cfg)

	require.NoError(t, p.StartSampling())
	b.Run(cfg.SamplesPerBatch)
	require.Equal(t, core.StateBuffer1Pending, p.State())

	// A second start while running must not discard the published buffer.
	require.NoError(t, p.StartSampling())
	assert.Equal(t, core.StateBuffer1Pending, p.State())
	assert.Zero(t, p.Stats().Restarts)

	require.NoError(t, run(b, s, 3*cfg.SamplesPerBatch))
	stats := p.Stats()
	assert.GreaterOrEqual(t, stats.Handoffs, uint32(3))
	assert.Zero(t, stats.Overruns)
	assert.NoError(t, p.Err())

	samples := decode(b.USART.Output())
	require.NotEmpty(t, samples)
	for i, v := range samples {
		require.Equal(t, uint16(i)&0xFFF, v, "sample %d", i)
	}
}
