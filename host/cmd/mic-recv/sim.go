package main

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/golang/glog"

	"smntmb/core"
	"smntmb/sim"
)

var coreLogOnce sync.Once

// routeCoreLog sends the pipeline's debug output to glog: -v=1 for
// messages, -v=2 also records the event ring.
func routeCoreLog() {
	coreLogOnce.Do(func() {
		core.SetDebugWriter(func(msg string) { glog.Info(msg) })
		core.SetDebugEnabled(bool(glog.V(1)))
		core.SetEventsEnabled(bool(glog.V(2)))
		core.InitAsyncDebug()
	})
}

// simSource runs the pipeline on the simulated board and serves the USART
// output as a byte stream.
type simSource struct {
	board    *sim.Board
	pipeline *core.Pipeline
	streamer *core.Streamer
	pending  []byte
	blocks   uint32 // stop after this many transmitted blocks, 0 runs forever
	halted   bool
}

func newSimSource(cfg core.CaptureConfig, policy core.FaultPolicy, clockHz uint32, blocks uint32) (*simSource, error) {
	routeCoreLog()
	board := sim.NewBoard(clockHz)
	p, err := core.NewPipeline(cfg, board.Ports(), policy)
	if err != nil {
		return nil, err
	}
	s := &simSource{board: board, pipeline: p, blocks: blocks}
	// A halted board keeps its state for inspection; the source just stops.
	p.Coordinator().SetHaltHandler(func() {
		s.halted = true
		glog.Errorf("sim: board halted at sample %d", board.Ticks)
	})
	board.Attach(p)
	if err := p.Init(); err != nil {
		return nil, err
	}
	if err := p.StartSampling(); err != nil {
		return nil, err
	}
	s.streamer = core.NewStreamer(p)
	return s, nil
}

func (s *simSource) Read(b []byte) (int, error) {
	for len(s.pending) == 0 {
		if s.halted {
			return 0, fmt.Errorf("sim: board halted: %w", s.pipeline.Err())
		}
		if s.blocks > 0 && s.pipeline.Transmit().Blocks >= s.blocks {
			s.pipeline.StopSampling()
			return 0, io.EOF
		}
		for i := 0; i < 256; i++ {
			s.board.Tick()
			if _, err := s.streamer.Poll(); err != nil {
				core.DebugAsync("[SIM] stopped at sample " + strconv.FormatUint(s.board.Ticks, 10))
				return 0, fmt.Errorf("sim: %w", err)
			}
		}
		s.pending = s.board.USART.TakeOutput()
	}
	n := copy(b, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *simSource) Close() error {
	s.pipeline.StopSampling()
	if core.IsDebugEnabled() {
		core.DumpEventRing()
	}
	return nil
}
