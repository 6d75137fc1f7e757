package blend

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Motion is a parsed BVH file. Hierarchy holds the skeleton section verbatim.
type Motion struct {
	Hierarchy string
	Channels  int
	FrameTime float64
	Frames    [][]float64
}

const (
	// maxFrames bounds the declared frame count; at 120 fps it is well over a day of motion.
	maxFrames = 1 << 24
	// framePrealloc caps how much of the declared count is reserved up front.
	framePrealloc = 1 << 16
)

// Parse reads a BVH document.
func Parse(r io.Reader) (*Motion, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var hierarchy strings.Builder
	m := &Motion{}
	inMotion := false
	frameCount := -1
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if !inMotion {
			if line == "MOTION" {
				inMotion = true
				continue
			}
			hierarchy.WriteString(scanner.Text())
			hierarchy.WriteByte('\n')
			fields := strings.Fields(line)
			if len(fields) >= 2 && fields[0] == "CHANNELS" {
				n, err := strconv.Atoi(fields[1])
				if err != nil || n < 0 {
					return nil, fmt.Errorf("line %d: invalid channel count %q", lineNo, fields[1])
				}
				m.Channels += n
			}
			continue
		}
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "Frames:"):
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Frames:")))
			if err != nil || n < 0 {
				return nil, fmt.Errorf("line %d: invalid frame count", lineNo)
			}
			if n > maxFrames {
				return nil, fmt.Errorf("line %d: frame count %d exceeds limit %d", lineNo, n, maxFrames)
			}
			frameCount = n
			m.Frames = make([][]float64, 0, min(n, framePrealloc))
		case strings.HasPrefix(line, "Frame Time:"):
			ft, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "Frame Time:")), 64)
			if err != nil || ft <= 0 {
				return nil, fmt.Errorf("line %d: invalid frame time", lineNo)
			}
			m.FrameTime = ft
		default:
			fields := strings.Fields(line)
			if len(fields) != m.Channels {
				return nil, fmt.Errorf("line %d: expected %d channel values, got %d", lineNo, m.Channels, len(fields))
			}
			frame := make([]float64, len(fields))
			for i, f := range fields {
				v, err := strconv.ParseFloat(f, 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: invalid value %q", lineNo, f)
				}
				frame[i] = v
			}
			m.Frames = append(m.Frames, frame)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(strings.TrimSpace(hierarchy.String()), "HIERARCHY") {
		return nil, fmt.Errorf("missing HIERARCHY section")
	}
	if !inMotion {
		return nil, fmt.Errorf("missing MOTION section")
	}
	if m.Channels == 0 {
		return nil, fmt.Errorf("skeleton declares no channels")
	}
	if frameCount < 0 || m.FrameTime == 0 {
		return nil, fmt.Errorf("missing Frames or Frame Time header")
	}
	if len(m.Frames) != frameCount {
		return nil, fmt.Errorf("header declares %d frames, found %d", frameCount, len(m.Frames))
	}
	if frameCount == 0 {
		return nil, fmt.Errorf("motion has no frames")
	}
	m.Hierarchy = hierarchy.String()
	return m, nil
}

// Write serializes the motion as BVH.
func (m *Motion) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := io.WriteString(bw, m.Hierarchy); err != nil {
		return err
	}
	fmt.Fprintf(bw, "MOTION\nFrames: %d\nFrame Time: %s\n", len(m.Frames), strconv.FormatFloat(m.FrameTime, 'f', 6, 64))
	for _, frame := range m.Frames {
		for i, v := range frame {
			if i > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(strconv.FormatFloat(v, 'f', 4, 64))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
