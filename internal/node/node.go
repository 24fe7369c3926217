// Package node wires every subsystem together into a running station:
// one Channel per radio channel (audio/modem/CSMA/transmit-queue/
// datalink) plus a shared KISS client listener and metrics registry.
// Grounded on the teacher's src/main.c-equivalent wiring and
// original_source/src/ipnode.c's four worker threads (spec §5):
// receive, transmit, client-interface listener, and the periodic timer
// sweep, rebuilt as one goroutine per concern coordinated by a
// context.Context instead of pthreads.
package node

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kb9xyz/packetnode/internal/audio"
	"github.com/kb9xyz/packetnode/internal/ax25"
	"github.com/kb9xyz/packetnode/internal/config"
	"github.com/kb9xyz/packetnode/internal/csma"
	"github.com/kb9xyz/packetnode/internal/datalink"
	"github.com/kb9xyz/packetnode/internal/il2p"
	"github.com/kb9xyz/packetnode/internal/kissiface"
	"github.com/kb9xyz/packetnode/internal/metrics"
	"github.com/kb9xyz/packetnode/internal/qpsk"
	"github.com/kb9xyz/packetnode/internal/queue"
	"github.com/kb9xyz/packetnode/internal/xmit"
)

// PTTControl is the seam to hardware PTT, satisfied by
// internal/gpio.Controller.PTT() or a test double.
type PTTControl interface {
	Set(on bool)
}

// Channel owns every piece of state needed to run one radio channel:
// its own callsign, audio device, modem, transmit queue, and data-link
// manager.
type Channel struct {
	num int
	own ax25.Address

	q       *queue.TransmitQueue
	dl      *datalink.Manager
	recv    *il2p.Receiver
	demod   *qpsk.Demodulator
	modu    *qpsk.Modulator
	dev     audio.Device
	cycle   *xmit.Cycle
	csmaCfg csma.Config
	rng     *rand.Rand

	met *metrics.Registry
	kiss *kissiface.Server

	log *log.Logger
}

// NewChannel builds one channel's full pipeline: IL2P receiver feeding
// a QPSK demodulator, a QPSK modulator feeding the transmit cycle, the
// AX.25 data-link manager, and the shared transmit queue and CSMA
// config for that channel.
func NewChannel(num int, cfg config.ChannelConfig, dev audio.Device, ptt PTTControl, met *metrics.Registry, kiss *kissiface.Server) (*Channel, error) {
	own, err := ax25.ParseAddress(cfg.MyCall)
	if err != nil {
		return nil, err
	}

	c := &Channel{
		num:  num,
		own:  own,
		q:    queue.New(),
		dev:  dev,
		met:  met,
		kiss: kiss,
		rng:  rand.New(rand.NewSource(int64(num) + 1)),
		log:  log.With("channel", num, "callsign", cfg.MyCall),
	}

	c.recv = il2p.NewReceiver(c.onFrame, c.onFrameError)

	modemCfg := qpsk.Config{}
	c.demod = qpsk.NewDemodulator(modemCfg, c.recv)
	c.modu = qpsk.NewModulator(modemCfg, dev)

	dlCfg := datalink.Config{
		Paclen:   cfg.Paclen,
		MaxFrame: cfg.MaxFrameBasic,
		Retry:    cfg.Retry,
		FrackSec: cfg.FrackSec,
	}
	c.dl = datalink.NewManager(dlCfg, c.hooksFor)
	c.dl.RegisterCallsign(cfg.MyCall)

	c.csmaCfg = csma.Config{
		SlotTime:   cfg.SlotTime,
		Persist:    cfg.Persist,
		DWait:      cfg.DWait,
		FullDuplex: cfg.FullDuplex,
	}

	c.cycle = xmit.NewCycle(xmit.Config{
		Baud:    cfg.Baud,
		TXDelay: cfg.TXDelay,
		TXTail:  cfg.TXTail,
	}, ptt, c.modu, c.q)

	return c, nil
}

// hooksFor supplies each data-link Session with its channel's transmit
// queue as its Send sink and a KISS broadcast as its Deliver sink,
// matching spec §5's "link state machine → client byte stream" RX data
// flow.
func (c *Channel) hooksFor(own, peer ax25.Address) datalink.Hooks {
	return datalink.Hooks{
		Send: func(p *ax25.Packet) {
			c.q.Append(queue.PriorityLow, c.num, p)
			if c.met != nil {
				c.met.FramesTX.WithLabelValues(chanLabel(c.num)).Inc()
			}
		},
		Deliver: func(pid byte, data []byte) {
			if c.kiss == nil {
				return
			}
			p := ax25.NewI(peer, own, false, 0, 0, pid, data)
			encoded, err := p.Encode()
			if err != nil {
				c.log.Warnf("re-encoding delivered payload for kiss client: %v", err)
				return
			}
			c.kiss.Broadcast(byte(c.num), encoded)
		},
	}
}

func chanLabel(n int) string {
	return strconv.Itoa(n)
}

// onFrame handles a fully IL2P-decoded inbound AX.25 packet, feeding it
// to the data-link manager (spec §4.9) and bumping RX metrics/RS
// correction counters.
func (c *Channel) onFrame(f il2p.Frame) {
	if c.met != nil {
		label := chanLabel(c.num)
		c.met.FramesRX.WithLabelValues(label).Inc()
		if f.HeaderCorrected+f.PayloadCorrected > 0 {
			c.met.RSCorrections.WithLabelValues(label).Add(float64(f.HeaderCorrected + f.PayloadCorrected))
		}
	}
	c.dl.HandleReceived(f.Packet)
}

func (c *Channel) onFrameError(err error) {
	c.log.Debugf("il2p decode error: %v", err)
}

// ReceiveLoop reads samples from the channel's audio device and feeds
// them through the demodulator until ctx is done, matching spec §5's
// receive thread.
func (c *Channel) ReceiveLoop(ctx context.Context) {
	wasBusy := false
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		sample, err := c.dev.ReadSample()
		if err != nil {
			c.log.Warnf("audio read error: %v", err)
			return
		}
		c.demod.ProcessSample(sample)

		if busy := c.recv.Busy(); busy != wasBusy {
			wasBusy = busy
			c.dl.ChannelBusyChanged(busy)
		}
	}
}

// dcdSource adapts the IL2P receiver's busy/idle state to
// csma.DCDSource, the software equivalent of a hardware squelch line.
type dcdSource struct{ recv *il2p.Receiver }

func (d dcdSource) Detected() bool { return d.recv.Busy() }

// TransmitLoop waits for queued frames, gates on CSMA, and runs one PTT
// cycle per contention win, matching spec §5's transmit thread.
func (c *Channel) TransmitLoop(ctx context.Context) {
	for {
		item, ok := c.q.Wait()
		if !ok {
			return
		}
		cleared := csma.WaitForClearChannel(ctx, c.csmaCfg, dcdSource{c.recv}, func() bool { return !c.q.Empty() }, c.rng)
		if !cleared {
			if ctx.Err() != nil {
				return
			}
			if c.met != nil {
				c.met.CSMADefers.WithLabelValues(chanLabel(c.num)).Inc()
			}
			// Channel never cleared before the CSMA timeout; put the
			// frame back and retry rather than dropping it silently.
			c.q.Append(queue.PriorityHigh, item.Channel, item.Packet)
			continue
		}
		c.cycle.Run(item)
	}
}

// PollTimers drives the channel's data-link T1/T3 sweep on a fixed
// tick, matching spec §5's periodic timer-check thread.
func (c *Channel) PollTimers(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			c.dl.PollTimers(now)
		}
	}
}

// Close releases the channel's transmit queue and audio device.
func (c *Channel) Close() error {
	c.q.Close()
	return c.dev.Close()
}

// HandleKISSData accepts a raw AX.25 frame submitted by a local client
// application (spec §6's "outbound data frames are raw serialized
// AX.25 frames") and enqueues it directly for transmission, matching a
// conventional KISS TNC's pass-through behavior.
func (c *Channel) HandleKISSData(raw []byte) {
	p, err := ax25.Decode(raw)
	if err != nil {
		c.log.Warnf("malformed kiss frame from client: %v", err)
		return
	}
	c.q.Append(queue.PriorityLow, c.num, p)
}
