// Package capture reads a camera, file or network stream, samples one in N
// frames and fans the kept frames out to the object store and message bus.
package capture

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"strings"
)

// pngSignature prefixes every PNG emitted by ffmpeg's image2pipe muxer.
var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// FFmpegSource decodes a video source with an ffmpeg subprocess emitting a
// concatenated PNG stream on stdout. This is the portable stand-in for an
// in-process decoder: ffmpeg handles devices, files and network streams
// alike.
type FFmpegSource struct {
	source string
	fps    float64
	cmd    *exec.Cmd
}

// NewFFmpegSource prepares a source. fps > 0 forces the output rate;
// otherwise frames arrive at the source's native rate.
func NewFFmpegSource(source string, fps float64) *FFmpegSource {
	return &FFmpegSource{source: source, fps: fps}
}

// Frames starts ffmpeg and returns a channel of encoded PNG frames. The
// channel closes when the source ends, ffmpeg dies, or ctx is cancelled.
func (s *FFmpegSource) Frames(ctx context.Context) (<-chan []byte, error) {
	args := []string{"-hide_banner", "-loglevel", "error"}

	switch {
	case strings.HasPrefix(s.source, "rtsp://"),
		strings.HasPrefix(s.source, "http://"),
		strings.HasPrefix(s.source, "https://"):
		args = append(args, "-i", s.source)
	case strings.HasPrefix(s.source, "/dev/video"):
		args = append(args, "-f", "v4l2", "-i", s.source)
	default:
		// File playback is throttled to realtime so sampling matches a live
		// source.
		args = append(args, "-re", "-i", s.source)
	}

	if s.fps > 0 {
		args = append(args, "-r", strconv.FormatFloat(s.fps, 'f', -1, 64))
	}
	args = append(args, "-f", "image2pipe", "-vcodec", "png", "-")

	s.cmd = exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := s.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer s.cmd.Wait()

		r := bufio.NewReaderSize(stdout, 1<<20)
		for {
			frame, err := readPNG(r)
			if err != nil {
				if err != io.EOF {
					log.Printf("[Capture] Frame stream ended: %v", err)
				}
				return
			}
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// readPNG consumes exactly one PNG image from r by walking its chunk list
// up to and including IEND.
func readPNG(r *bufio.Reader) ([]byte, error) {
	sig := make([]byte, len(pngSignature))
	if _, err := io.ReadFull(r, sig); err != nil {
		return nil, err
	}
	if string(sig) != string(pngSignature) {
		return nil, fmt.Errorf("bad PNG signature")
	}

	buf := append([]byte(nil), sig...)
	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			return nil, fmt.Errorf("read chunk header: %w", err)
		}
		length := binary.BigEndian.Uint32(header[:4])
		chunkType := string(header[4:8])

		chunk := make([]byte, length+4) // data + CRC
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, fmt.Errorf("read chunk %s: %w", chunkType, err)
		}

		buf = append(buf, header...)
		buf = append(buf, chunk...)

		if chunkType == "IEND" {
			return buf, nil
		}
	}
}
