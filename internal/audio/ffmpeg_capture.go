package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"interviewlive/internal/ports"
)

const bytesPerFloatSample = 4

// FFMPEGCapture captures the microphone as float32 frames using ffmpeg.
type FFMPEGCapture struct {
	command string
	logger  *slog.Logger

	echoWarning sync.Once
}

func NewFFMPEGCapture(command string, logger *slog.Logger) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFMPEGCapture{command: command, logger: logger.With(slog.String("component", "capture"))}
}

func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.CaptureConfig) (ports.CaptureStream, error) {
	cfg = withCaptureDefaults(cfg)
	if cfg.EchoCancellation && !isEchoCancelSource(cfg.InputDevice) {
		c.echoWarning.Do(func() {
			c.logger.Warn("echo cancellation requested but the input is not an echo-cancel source",
				slog.String("input_format", cfg.InputFormat),
				slog.String("input_device", cfg.InputDevice),
			)
		})
	}

	cmd := exec.CommandContext(ctx, c.command, captureArgs(cfg)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, stringsTrimSpaceSafe(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	session := &ffmpegSession{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
		frames:  make(chan []float32, 16),
		stopped: make(chan struct{}),
	}
	go session.readLoop(cfg.FrameSamples)
	return session, nil
}

func withCaptureDefaults(cfg ports.CaptureConfig) ports.CaptureConfig {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.FrameSamples <= 0 {
		cfg.FrameSamples = 4096
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return cfg
}

// isEchoCancelSource reports whether the device name looks like an
// echo-cancelling source, such as the one PulseAudio's module-echo-cancel or
// PipeWire's echo-cancel filter creates.
func isEchoCancelSource(device string) bool {
	name := strings.ToLower(device)
	return strings.Contains(name, "echo-cancel") || strings.Contains(name, "echocancel") || strings.Contains(name, "echo_cancel")
}

// captureArgs builds the ffmpeg command line. Echo cancellation comes from
// the input source itself; ffmpeg has no canceller for a live microphone.
func captureArgs(cfg ports.CaptureConfig) []string {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
	}
	if cfg.NoiseSuppression {
		args = append(args, "-af", "afftdn")
	}
	return append(args,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "f32le",
		"-",
	)
}

type ffmpegSession struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	frames  chan []float32
	stopped chan struct{}

	errMu   sync.Mutex
	readErr error

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Frames() <-chan []float32 {
	return s.frames
}

func (s *ffmpegSession) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.readErr
}

func (s *ffmpegSession) readLoop(frameSamples int) {
	defer close(s.frames)

	buf := make([]byte, frameSamples*bytesPerFloatSample)
	for {
		n, err := io.ReadFull(s.stdout, buf)
		if usable := n - n%bytesPerFloatSample; usable > 0 {
			select {
			case s.frames <- decodeFloat32LE(buf[:usable]):
			case <-s.stopped:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, os.ErrClosed) {
				s.errMu.Lock()
				s.readErr = err
				s.errMu.Unlock()
			}
			return
		}
	}
}

func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stopped)
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, stringsTrimSpaceSafe(s.stderr.String()))
		}
	})

	return s.stopErr
}

func decodeFloat32LE(raw []byte) []float32 {
	out := make([]float32, len(raw)/bytesPerFloatSample)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*bytesPerFloatSample:]))
	}
	return out
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func stringsTrimSpaceSafe(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
