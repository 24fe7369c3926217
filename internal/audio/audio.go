// Package audio owns the sound-card stream that carries the QPSK
// passband signal (spec §4.6), grounded on original_source/src/audio.c's
// audio_open/audio_get/audio_put/audio_flush/audio_close ALSA plumbing,
// rebuilt on top of github.com/gordonklaus/portaudio for a
// cross-platform, non-cgo-to-ALSA-specific device binding.
package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// Config mirrors the relevant fields of the original's struct audio_s:
// one mono input device and one mono output device sharing a sample
// rate, plus the per-buffer duration the original calls ONE_BUF_TIME.
type Config struct {
	InputDevice  string
	OutputDevice string
	SampleRate   float64
	BufMillis    int
}

func (c Config) withDefaults() Config {
	if c.SampleRate == 0 {
		c.SampleRate = 44100
	}
	if c.BufMillis == 0 {
		c.BufMillis = 10 // matches ONE_BUF_TIME
	}
	return c
}

func (c Config) framesPerBuffer() int {
	return int(c.SampleRate) * c.BufMillis / 1000
}

// Device is the seam between the audio hardware and the rest of the node:
// internal/qpsk's modulator writes to it as its sample sink and
// internal/node reads received samples from it for the demodulator,
// keeping internal/qpsk free of any portaudio import; device open/close policy
// (which sound card, which sample rate) stays external to this
// interface, matching audio device selection being out of scope.
type Device interface {
	ReadSample() (float64, error)
	WriteSample(sample float64)
	Flush()
	Close() error
}

// Stream is a duplex mono audio channel: ReadSample pulls one captured
// sample at a time like audio_get, WriteSample pushes one like
// audio_put, and Flush/Close mirror audio_flush/audio_close.
type Stream struct {
	cfg    Config
	stream *portaudio.Stream

	in     []float32
	inNext int

	out     []float32
	outNext int
}

// Open starts a duplex portaudio stream matching the sample rate and
// per-buffer framing audio_open negotiates with ALSA.
func Open(cfg Config) (*Stream, error) {
	cfg = cfg.withDefaults()

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}

	frames := cfg.framesPerBuffer()
	s := &Stream{
		cfg: cfg,
		in:  make([]float32, frames),
		out: make([]float32, frames),
	}
	s.inNext = len(s.in)

	inDev, outDev, err := resolveDevices(cfg)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	params := portaudio.LowLatencyParameters(inDev, outDev)
	params.Input.Channels = 1
	params.Output.Channels = 1
	params.SampleRate = cfg.SampleRate
	params.FramesPerBuffer = frames

	stream, err := portaudio.OpenStream(params, s.in, s.out)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("opening audio stream: %w", err)
	}
	s.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("starting audio stream: %w", err)
	}

	return s, nil
}

func resolveDevices(cfg Config) (in, out *portaudio.DeviceInfo, err error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, nil, err
	}

	in, err = findDevice(devices, cfg.InputDevice, true)
	if err != nil {
		return nil, nil, err
	}
	out, err = findDevice(devices, cfg.OutputDevice, false)
	if err != nil {
		return nil, nil, err
	}
	return in, out, nil
}

func findDevice(devices []*portaudio.DeviceInfo, name string, input bool) (*portaudio.DeviceInfo, error) {
	if name == "" || name == "default" {
		host, err := portaudio.DefaultHostApi()
		if err != nil {
			return nil, err
		}
		if input {
			return host.DefaultInputDevice, nil
		}
		return host.DefaultOutputDevice, nil
	}
	for _, d := range devices {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("audio device %q not found", name)
}

// ReadSample blocks for the next captured sample, refilling its input
// buffer from the stream as audio_get refills adev.inbuf_ptr.
func (s *Stream) ReadSample() (float64, error) {
	if s.inNext >= len(s.in) {
		if err := s.stream.Read(); err != nil {
			return 0, err
		}
		s.inNext = 0
	}
	v := s.in[s.inNext]
	s.inNext++
	return float64(v), nil
}

// WriteSample queues one outbound sample, flushing the buffer to the
// device once it fills, matching audio_put/audio_flush.
func (s *Stream) WriteSample(sample float64) {
	s.out[s.outNext] = float32(sample)
	s.outNext++
	if s.outNext == len(s.out) {
		s.Flush()
	}
}

// Flush writes any partially-filled output buffer to the device,
// zero-padding the remainder, matching audio_flush's write-then-clear.
func (s *Stream) Flush() {
	if s.outNext == 0 {
		return
	}
	for i := s.outNext; i < len(s.out); i++ {
		s.out[i] = 0
	}
	s.stream.Write()
	s.outNext = 0
}

// Close drains any pending output and releases the device, matching
// audio_close.
func (s *Stream) Close() error {
	s.Flush()
	err := s.stream.Close()
	portaudio.Terminate()
	return err
}
