// Command packetnode is the connected-mode AX.25/IL2P/QPSK packet radio
// node daemon. Grounded on the teacher's cmd/direwolf/main.go flag
// surface and startup sequence (config load, audio open, modem/link
// init, KISS listener, main receive loop), rebuilt without cgo.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/kb9xyz/packetnode/internal/audio"
	"github.com/kb9xyz/packetnode/internal/config"
	"github.com/kb9xyz/packetnode/internal/gpio"
	"github.com/kb9xyz/packetnode/internal/kissframe"
	"github.com/kb9xyz/packetnode/internal/kissiface"
	"github.com/kb9xyz/packetnode/internal/metrics"
	"github.com/kb9xyz/packetnode/internal/node"
)

func main() {
	configFileName := pflag.StringP("config-file", "c", "packetnode.conf", "Configuration file name.")
	enablePTY := pflag.BoolP("enable-ptty", "p", false, "Enable pseudo terminal for KISS protocol, in addition to the TCP listener.")
	textColor := pflag.IntP("text-color", "t", 1, "Text colors. 0=disabled. Kept as a no-op parity flag with the teacher's CLI.")
	quiet := pflag.BoolP("quiet", "q", false, "Suppress informational logging (errors/warnings only).")
	metricsAddr := pflag.StringP("metrics-addr", "m", "", "If set, serve Prometheus metrics on this address (e.g. :9091).")
	gpioChip := pflag.StringP("gpio-chip", "g", "", "GPIO chip device for PTT/DCD/CON/SYN, e.g. gpiochip0. Empty disables hardware PTT.")
	help := pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "packetnode - an AX.25/IL2P/QPSK packet radio node.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: packetnode [options]\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()
	_ = textColor // parity flag only, no console-color shim in this port

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	if *quiet {
		log.SetLevel(log.WarnLevel)
	}

	f, err := os.Open(*configFileName)
	if err != nil {
		log.Fatalf("opening config file %s: %v", *configFileName, err)
	}
	cfg, parseErrs := config.Load(f)
	f.Close()
	for _, pe := range parseErrs {
		log.Warnf("config: %v", pe)
	}

	met := metrics.New()
	if *metricsAddr != "" {
		go func() {
			log.Infof("serving metrics on %s/metrics", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, met.Handler()); err != nil {
				log.Errorf("metrics server stopped: %v", err)
			}
		}()
	}

	var gpioCtl *gpio.Controller
	if *gpioChip != "" {
		gpioCtl, err = gpio.Open(*gpioChip, map[gpio.Line]gpio.LineConfig{
			gpio.LinePTT: {Offset: 0},
			gpio.LineDCD: {Offset: 1},
			gpio.LineCON: {Offset: 2},
			gpio.LineSYN: {Offset: 3},
		}, map[gpio.Line]gpio.LineConfig{
			gpio.LineTXInhibit: {Offset: 4},
		})
		if err != nil {
			log.Fatalf("opening gpio chip %s: %v", *gpioChip, err)
		}
		defer gpioCtl.Close()
	}

	channels := map[int]*node.Channel{}

	kissSrv, err := kissiface.Listen(fmt.Sprintf(":%d", cfg.KISSPort), func(_ *kissiface.Client, f kissframe.Frame) {
		if ch, ok := channels[int(f.Channel)]; ok {
			ch.HandleKISSData(f.Data)
		}
	}, nil)
	if err != nil {
		log.Fatalf("starting kiss tcp listener: %v", err)
	}
	defer kissSrv.Close()

	var agwSrv *kissiface.AGWServer
	if cfg.AGWPort != 0 {
		agwSrv, err = kissiface.ListenAGWPE(fmt.Sprintf(":%d", cfg.AGWPort))
		if err != nil {
			log.Fatalf("starting agwpe stub listener: %v", err)
		}
		defer agwSrv.Close()
		go func() {
			if err := agwSrv.Serve(); err != nil {
				log.Warnf("agwpe stub listener stopped: %v", err)
			}
		}()
	}

	for num, chCfg := range cfg.Channels {
		dev, err := audio.Open(audio.Config{
			InputDevice:  cfg.AudioDev,
			OutputDevice: cfg.AudioDev,
			SampleRate:   float64(cfg.SampleRate),
		})
		if err != nil {
			log.Fatalf("opening audio device for channel %d: %v", num, err)
		}

		var ptt node.PTTControl = noopPTT{}
		if gpioCtl != nil {
			p := gpioCtl.PTT()
			ptt = p
		}

		ch, err := node.NewChannel(num, *chCfg, dev, ptt, met, kissSrv)
		if err != nil {
			log.Fatalf("wiring channel %d: %v", num, err)
		}
		channels[num] = ch
	}

	if *enablePTY {
		master, slave, err := kissiface.OpenPTY()
		if err != nil {
			log.Errorf("opening pty for kiss: %v", err)
		} else {
			log.Infof("kiss pty available at %s", slave)
			client := kissiface.NewClient(master, dispatchKISSData(channels, 0), nil)
			go client.Serve()
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for num, ch := range channels {
		go ch.ReceiveLoop(ctx)
		go ch.TransmitLoop(ctx)
		go ch.PollTimers(ctx, cfg.Channels[num].SlotTime)
	}
	go kissSrv.Serve()

	log.Infof("packetnode running with %d channel(s), kiss tcp on port %d, agwpe stub on port %d", len(channels), cfg.KISSPort, cfg.AGWPort)

	<-ctx.Done()
	log.Infof("shutting down")
	for _, ch := range channels {
		ch.Close()
	}
}

// dispatchKISSData routes a KISS pty client's outbound data frames to
// the given channel's transmit path, matching the teacher's single
// pty-per-process KISS model (src/kiss.go).
func dispatchKISSData(channels map[int]*node.Channel, num int) func(kissframe.Frame) {
	ch := channels[num]
	return func(f kissframe.Frame) {
		if ch == nil {
			return
		}
		ch.HandleKISSData(f.Data)
	}
}

type noopPTT struct{}

func (noopPTT) Set(bool) {}
