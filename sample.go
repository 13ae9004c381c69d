package tremor

import (
	"math"

	"tremor/Sensor"
)

// Sample 三轴加速度 (g)
type Sample struct {
	X, Y, Z float64
}

// Magnitude 欧氏范数，不会为负
func (s Sample) Magnitude() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// SampleSource 样本来源。读取前必须先确认 PollReady 为 true
type SampleSource interface {
	PollReady() (bool, error)
	ReadSample() (Sample, error)
}

// accelDevice 是 Sensor.LSM6DSL 中检测器需要的部分
type accelDevice interface {
	DataReady() (bool, error)
	ReadAcceleration() (Sensor.Acceleration, error)
}

// SensorSource 把加速度计驱动适配成 SampleSource
type SensorSource struct {
	dev accelDevice
}

func NewSensorSource(dev accelDevice) *SensorSource {
	return &SensorSource{dev: dev}
}

func (s *SensorSource) PollReady() (bool, error) {
	return s.dev.DataReady()
}

func (s *SensorSource) ReadSample() (Sample, error) {
	a, err := s.dev.ReadAcceleration()
	if err != nil {
		return Sample{}, err
	}
	return Sample{X: a.X, Y: a.Y, Z: a.Z}, nil
}

// RecordingSource 读取样本的同时写入录音文件
type RecordingSource struct {
	SampleSource
	writer *WavWriter
}

func NewRecordingSource(src SampleSource, w *WavWriter) *RecordingSource {
	return &RecordingSource{SampleSource: src, writer: w}
}

func (r *RecordingSource) ReadSample() (Sample, error) {
	s, err := r.SampleSource.ReadSample()
	if err != nil {
		return s, err
	}
	if err := r.writer.WriteSample(s); err != nil {
		return s, err
	}
	return s, nil
}
