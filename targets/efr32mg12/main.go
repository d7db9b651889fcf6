//go:build efr32mg12

package main

import (
	"context"
	"device/arm"
	"errors"
	"time"

	"smntmb/core"
)

var (
	pipeline *core.Pipeline
	streamer *core.Streamer

	runs     uint32
	restarts uint32
)

// Delay before sampling restarts after an overrun.
const restartDelay = 10 * time.Millisecond

//export LDMA_IRQHandler
func handleLDMA() {
	if pipeline != nil {
		pipeline.HandleIRQ()
	}
}

func main() {
	InitClock()
	InitDebug()
	core.SetDebugWriter(DebugPrintln)
	core.SetDebugEnabled(true)

	BoardPowerUp()

	ports := core.Ports{
		DMA:    NewEFRLDMADriver(),
		Source: NewEFRAdcDriver(),
		Serial: NewEFRUsartDriver(serialBaud),
		Timer:  NewEFRTimerDriver(),
	}

	// A transfer engine fault stops in the interrupt so the debugger sees
	// the LDMA registers as they were.
	p, err := core.NewPipeline(core.DefaultCaptureConfig(), ports, core.FaultHalt)
	if err != nil {
		core.DebugPrintln("[MIC] pipeline: " + err.Error())
		halt()
	}
	if err := p.Init(); err != nil {
		core.DebugPrintln("[MIC] init: " + err.Error())
		halt()
	}
	pipeline = p
	arm.EnableIRQ(irqLDMA)

	streamer = core.NewStreamer(p)
	streamer.Idle = func() {
		arm.Asm("wfi")
	}

	core.DebugPrintln("[MIC] sampling")
	for {
		runs++
		err := streamer.Run(context.Background())
		if errors.Is(err, core.ErrOverrun) {
			restarts++
			core.DebugPrintln("[MIC] overrun, restarting")
			time.Sleep(restartDelay)
			continue
		}
		core.DumpEventRing()
		if errors.Is(err, core.ErrTransferFault) {
			p.ResetFault()
		}
		time.Sleep(restartDelay)
	}
}

func halt() {
	for {
		arm.Asm("wfi")
	}
}
