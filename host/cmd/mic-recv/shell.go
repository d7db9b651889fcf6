package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"smntmb/config"
	"smntmb/host/recv"
)

const receiverKey = "$receiver"

func newShell(r *recv.Receiver, cfg *config.Config, stop func()) *ishell.Shell {
	sh := ishell.New()
	sh.Set(receiverKey, r)
	sh.SetPrompt("mic> ")
	sh.Printf("%s, %d samples/block at %d Hz\n",
		versionString(), cfg.Pipeline.SamplesPerBatch, cfg.Pipeline.SampleRate)

	sh.AddCmd(&ishell.Cmd{
		Name: "stats",
		Help: "show receiver counters",
		Func: func(c *ishell.Context) {
			st := receiverFrom(c).Stats()
			c.Printf("bytes:        %d\n", st.Bytes)
			c.Printf("blocks:       %d\n", st.Blocks)
			c.Printf("range errors: %d\n", st.RangeErrors)
			c.Printf("sink errors:  %d\n", st.SinkErrors)
			if !st.LastBlockAt.IsZero() {
				c.Printf("last block:   %s ago\n", time.Since(st.LastBlockAt).Round(time.Millisecond))
				c.Printf("bias:         %.1f\n", st.Bias)
				c.Printf("p-p:          %d\n", st.PeakToPeak)
			}
		},
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "record",
		Help: "record <path> [raw|csv|proto]: start recording blocks",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("usage: record <path> [format]"))
				return
			}
			rc := config.RecordConfig{Path: c.Args[0]}
			if len(c.Args) > 1 {
				rc.Format = c.Args[1]
			}
			tmp := config.Config{Pipeline: cfg.Pipeline}
			tmp.Receiver.Record = rc
			tmp.ApplyDefaults()
			if err := tmp.Validate(); err != nil {
				c.Err(err)
				return
			}
			s, err := recv.OpenFileSink(rc.Path, tmp.Receiver.Record.Format)
			if err != nil {
				c.Err(err)
				return
			}
			receiverFrom(c).AddSink("record", s)
			c.Printf("recording %s to %s\n", tmp.Receiver.Record.Format, rc.Path)
		},
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "stop",
		Help: "stop recording",
		Func: func(c *ishell.Context) {
			if !receiverFrom(c).RemoveSink("record") {
				c.Println("not recording")
			}
		},
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "sinks",
		Help: "list attached sinks",
		Func: func(c *ishell.Context) {
			names := receiverFrom(c).SinkNames()
			sort.Strings(names)
			for _, name := range names {
				c.Println(name)
			}
		},
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "resync",
		Help: "drop the partial block after the board restarted",
		Func: func(c *ishell.Context) {
			receiverFrom(c).Resync()
		},
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "skip",
		Help: "skip [n]: drop n bytes (default 1) to realign on a sample boundary",
		Func: func(c *ishell.Context) {
			n := 1
			if len(c.Args) > 0 {
				v, err := strconv.Atoi(c.Args[0])
				if err != nil || v < 0 {
					c.Err(fmt.Errorf("usage: skip [n]"))
					return
				}
				n = v
			}
			c.Printf("dropped %d bytes\n", receiverFrom(c).Skip(n))
		},
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "quit",
		Help: "stop receiving and exit",
		Func: func(c *ishell.Context) {
			stop()
			c.Stop()
		},
	})
	return sh
}

func receiverFrom(c *ishell.Context) *recv.Receiver {
	return c.Get(receiverKey).(*recv.Receiver)
}
