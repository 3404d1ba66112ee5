package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"interviewlive/internal/audio"
	"interviewlive/internal/metrics"
	"interviewlive/internal/ports"
	"interviewlive/internal/protocol"
)

var ErrDeviceUnavailable = errors.New("capture device unavailable")

type pipelineConfig struct {
	Capture       ports.CaptureConfig
	ChunkSamples  int
	FlushInterval time.Duration
}

// audioPipeline captures microphone frames into a rolling PCM16 buffer and
// flushes it to the channel on a fixed interval. The buffer is touched only
// by the capture loop and the flush.
type audioPipeline struct {
	capture ports.CaptureDevice
	channel ports.Channel
	cfg     pipelineConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	// onFailure is called on its own goroutine when capture ends unexpectedly.
	onFailure func(error)

	bufMu  sync.Mutex
	buffer *audio.SampleBuffer

	flushMu sync.Mutex

	stream      ports.CaptureStream
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	releaseOnce sync.Once
	releaseErr  error
}

func newAudioPipeline(
	capture ports.CaptureDevice,
	channel ports.Channel,
	cfg pipelineConfig,
	logger *slog.Logger,
	m *metrics.Metrics,
	onFailure func(error),
) *audioPipeline {
	return &audioPipeline{
		capture:   capture,
		channel:   channel,
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		onFailure: onFailure,
		buffer:    audio.NewSampleBuffer(cfg.ChunkSamples),
	}
}

// Start acquires the capture device and begins recording. It blocks while
// the device is being acquired.
func (p *audioPipeline) Start(ctx context.Context) error {
	stream, err := p.capture.Start(ctx, p.cfg.Capture)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.stream = stream
	p.cancel = cancel

	p.wg.Add(2)
	go p.captureLoop(loopCtx)
	go p.flushLoop(loopCtx)
	return nil
}

func (p *audioPipeline) captureLoop(ctx context.Context) {
	defer p.wg.Done()

	for frame := range p.stream.Frames() {
		pcm := audio.ConvertFloatFrame(frame)
		p.bufMu.Lock()
		p.buffer.Append(pcm)
		p.bufMu.Unlock()
	}

	if ctx.Err() != nil {
		return
	}
	err := p.stream.Err()
	if err == nil {
		err = errors.New("capture stream ended")
	}
	if p.onFailure != nil {
		go p.onFailure(fmt.Errorf("%w: %w", ErrDeviceUnavailable, err))
	}
}

func (p *audioPipeline) flushLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Flush()
		}
	}
}

// Flush sends at most one chunk: a full chunk when enough samples are
// buffered, otherwise the whole remainder. Nothing is taken from the buffer
// while the channel is not open. It returns the number of samples sent.
func (p *audioPipeline) Flush() int {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	if !p.channel.Open() {
		return 0
	}

	p.bufMu.Lock()
	chunk := p.buffer.NextChunk(p.cfg.ChunkSamples)
	p.bufMu.Unlock()
	if len(chunk) == 0 {
		return 0
	}

	if err := p.channel.Send(protocol.EncodePCM16(chunk)); err != nil {
		p.metrics.RecordChunkDropped()
		p.logger.Debug("audio chunk dropped", slog.Int("samples", len(chunk)), slog.Any("error", err))
		return 0
	}
	p.metrics.RecordChunkSent(len(chunk))
	return len(chunk)
}

// Buffered returns the number of samples waiting for a flush.
func (p *audioPipeline) Buffered() int {
	p.bufMu.Lock()
	defer p.bufMu.Unlock()
	return p.buffer.Len()
}

// Release stops the loops and the device. Safe to call more than once and
// on a pipeline whose Start failed.
func (p *audioPipeline) Release() error {
	p.releaseOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		if p.stream != nil {
			p.releaseErr = p.stream.Stop()
		}
		p.wg.Wait()

		p.bufMu.Lock()
		p.buffer.Reset()
		p.bufMu.Unlock()
	})
	return p.releaseErr
}
