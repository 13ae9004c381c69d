package tremor

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// WavReader 读取 WavWriter 录下的加速度文件 (仅支持 16-bit PCM)
// 单声道文件视为只有 Z 轴；多于三个声道时只取前三个
type WavReader struct {
	file       *os.File
	reader     *bufio.Reader
	SampleRate int
	Channels   int
	DataSize   int
	fullScale  float64
	remaining  int
	frame      []byte
}

func NewWavReader(filename string, fullScale float64) (*WavReader, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	// 读取 RIFF 头
	riffHeader := make([]byte, 12)
	if _, err := io.ReadFull(f, riffHeader); err != nil {
		f.Close()
		return nil, err
	}

	if string(riffHeader[0:4]) != "RIFF" || string(riffHeader[8:12]) != "WAVE" {
		f.Close()
		return nil, fmt.Errorf("invalid wav file")
	}

	var channels, sampleRate, bitsPerSample, dataSize int
	var dataStart int64
	foundFmt := false
	foundData := false

	for {
		chunkHeader := make([]byte, 8)
		if _, err := io.ReadFull(f, chunkHeader); err != nil {
			if err == io.EOF {
				break
			}
			f.Close()
			return nil, err
		}

		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		// Pad byte if chunk size is odd
		padding := int64(chunkSize % 2)

		if chunkID == "fmt " {
			if chunkSize < 16 {
				f.Close()
				return nil, fmt.Errorf("fmt chunk too small")
			}
			fmtData := make([]byte, chunkSize)
			if _, err := io.ReadFull(f, fmtData); err != nil {
				f.Close()
				return nil, err
			}
			if padding > 0 {
				f.Seek(padding, io.SeekCurrent)
			}

			channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(fmtData[14:16]))
			foundFmt = true
		} else if chunkID == "data" {
			dataSize = int(chunkSize)
			pos, _ := f.Seek(0, io.SeekCurrent)
			dataStart = pos
			foundData = true

			if foundFmt {
				break
			}
			// Skip data
			if _, err := f.Seek(int64(chunkSize)+padding, io.SeekCurrent); err != nil {
				f.Close()
				return nil, err
			}
		} else {
			// Skip unknown chunk
			if _, err := f.Seek(int64(chunkSize)+padding, io.SeekCurrent); err != nil {
				f.Close()
				return nil, err
			}
		}
	}

	if !foundFmt || !foundData {
		f.Close()
		return nil, fmt.Errorf("invalid wav file: missing fmt or data chunk")
	}

	if bitsPerSample != 16 {
		f.Close()
		return nil, fmt.Errorf("only 16-bit wav supported, got %d", bitsPerSample)
	}
	if channels < 1 {
		f.Close()
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}

	// 确保文件指针指向 data 开始
	if _, err := f.Seek(dataStart, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	return &WavReader{
		file:       f,
		reader:     bufio.NewReader(f),
		SampleRate: sampleRate,
		Channels:   channels,
		DataSize:   dataSize,
		fullScale:  fullScale,
		remaining:  dataSize,
		frame:      make([]byte, channels*2),
	}, nil
}

// PollReady 回放时数据总是就绪，读完后返回 io.EOF
func (r *WavReader) PollReady() (bool, error) {
	if r.remaining < len(r.frame) {
		return false, io.EOF
	}
	return true, nil
}

// ReadSample 读取一帧并换算成 g
func (r *WavReader) ReadSample() (Sample, error) {
	if r.remaining < len(r.frame) {
		return Sample{}, io.EOF
	}
	if _, err := io.ReadFull(r.reader, r.frame); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Sample{}, io.EOF
		}
		return Sample{}, err
	}
	r.remaining -= len(r.frame)

	var axes [3]float64
	for i := 0; i < 3 && i < r.Channels; i++ {
		val := int16(binary.LittleEndian.Uint16(r.frame[i*2 : i*2+2]))
		axes[i] = float64(val) / 32767.0 * r.fullScale
	}
	if r.Channels == 1 {
		return Sample{Z: axes[0]}, nil
	}
	return Sample{X: axes[0], Y: axes[1], Z: axes[2]}, nil
}

func (r *WavReader) Close() error {
	return r.file.Close()
}
