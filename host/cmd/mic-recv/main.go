package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"

	"smntmb/config"
	"smntmb/host/recv"
	"smntmb/host/serial"
	"smntmb/protocol"
)

var (
	configPath  = flag.String("config", "", "JSON configuration file")
	device      = flag.String("device", "", "Serial device path (overrides config)")
	baud        = flag.Int("baud", 0, "Baud rate (overrides config)")
	record      = flag.String("record", "", "Record blocks to this file (.bin, .csv or .pb)")
	mqttURL     = flag.String("mqtt", "", "MQTT broker URL for publishing blocks")
	replay      = flag.String("replay", "", "Replay a raw recording instead of reading the device")
	simulate    = flag.Bool("sim", false, "Stream from the simulated board")
	simBlocks   = flag.Uint("sim-blocks", 0, "Stop the simulated board after this many blocks")
	interactive = flag.Bool("shell", true, "Run the interactive shell")
	showVersion = flag.Bool("version", false, "Print the stream format version and exit")
)

func versionString() string {
	return "mic-recv, stream format " + protocol.Version
}

func main() {
	flag.Parse()
	defer glog.Flush()

	if *showVersion {
		fmt.Println(versionString())
		return
	}
	glog.Info(versionString())

	cfg, err := loadConfig()
	if err != nil {
		glog.Exit(err)
	}

	src, err := openSource(cfg)
	if err != nil {
		glog.Exit(err)
	}
	defer src.Close()

	r, err := recv.New(src, recv.Options{
		BlockSamples: cfg.Pipeline.SamplesPerBatch,
		SampleRate:   cfg.Pipeline.SampleRate,
		Device:       sourceName(cfg),
		StopOnEOF:    *replay != "" || *simulate,
	})
	if err != nil {
		glog.Exit(err)
	}
	if err := attachSinks(r, cfg); err != nil {
		glog.Exit(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		glog.Info("stop requested")
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	if *interactive {
		sh := newShell(r, cfg, cancel)
		go func() {
			<-ctx.Done()
			sh.Close()
		}()
		sh.Run()
		cancel()
	}

	if err := <-errCh; err != nil && err != context.Canceled {
		glog.Errorf("receiver stopped: %v", err)
	}
	st := r.Stats()
	glog.Infof("received %d bytes, %d blocks", st.Bytes, st.Blocks)
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			return nil, err
		}
	}
	rc := &cfg.Receiver
	if *device != "" {
		rc.Device = *device
	}
	if *baud != 0 {
		rc.Baud = *baud
	}
	if *record != "" {
		rc.Record = config.RecordConfig{Path: *record}
	}
	if *mqttURL != "" {
		rc.MQTT.Broker = *mqttURL
	}
	cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}

func openSource(cfg *config.Config) (io.ReadCloser, error) {
	switch {
	case *simulate:
		policy, err := cfg.Policy()
		if err != nil {
			return nil, err
		}
		return newSimSource(cfg.Capture(), policy, cfg.Pipeline.ClockHz, uint32(*simBlocks))
	case *replay != "":
		return os.Open(*replay)
	}
	port, err := serial.Open(serial.FromReceiver(cfg.Receiver))
	if err != nil {
		return nil, err
	}
	if err := port.Flush(); err != nil {
		glog.Warningf("flush %s: %v", cfg.Receiver.Device, err)
	}
	glog.Infof("listening on %s at %d baud", port.Device(), cfg.Receiver.Baud)
	return port, nil
}

func sourceName(cfg *config.Config) string {
	switch {
	case *simulate:
		return "sim"
	case *replay != "":
		return *replay
	}
	return cfg.Receiver.Device
}

func attachSinks(r *recv.Receiver, cfg *config.Config) error {
	rc := cfg.Receiver
	if rc.Record.Path != "" {
		s, err := recv.OpenFileSink(rc.Record.Path, rc.Record.Format)
		if err != nil {
			return err
		}
		r.AddSink("record", s)
		glog.Infof("recording %s blocks to %s", rc.Record.Format, rc.Record.Path)
	}
	if rc.MQTT.Broker != "" {
		id := recv.HostID()
		pub, err := recv.DialMQTT(rc.MQTT, id)
		if err != nil {
			return err
		}
		s := recv.NewMQTTSink(pub, rc.MQTT.Topic, id)
		r.AddSink("mqtt", s)
		glog.Infof("publishing blocks on %s", s.Topic())
	}
	return nil
}
