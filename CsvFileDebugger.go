package tremor

import (
	"bufio"
	"fmt"
	"os"
)

// TraceRecorder 定义调试器接口
// 检测器只依赖这个接口，不依赖具体的文件操作
type TraceRecorder interface {
	Record(rep TickReport)
	Close()
}

// CsvFileDebugger 是 TraceRecorder 的具体实现
type CsvFileDebugger struct {
	file   *os.File
	writer *bufio.Writer
}

// NewCsvFileDebugger 创建一个新的 CSV 调试器
func NewCsvFileDebugger(filename string) (*CsvFileDebugger, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	w := bufio.NewWriter(f)
	// 写入表头
	if _, err := w.WriteString("Seq,Magnitude,Warm,Analyzed,Class,TremorBins,DyskinesiaBins,TremorPeak,DyskinesiaPeak,TremorFreq,DyskinesiaFreq,Strong\n"); err != nil {
		f.Close()
		return nil, err
	}

	return &CsvFileDebugger{
		file:   f,
		writer: w,
	}, nil
}

// Record 记录单帧数据
func (d *CsvFileDebugger) Record(rep TickReport) {
	r := rep.Result
	fmt.Fprintf(d.writer, "%d,%f,%d,%d,%s,%d,%d,%f,%f,%f,%f,%d\n",
		rep.Seq, rep.Magnitude, b2i(rep.Warm), b2i(rep.Analyzed), r.Class,
		r.TremorCount, r.DyskinesiaCount, r.TremorPeak, r.DyskinesiaPeak,
		r.TremorPeakFreq, r.DyskinesiaPeakFreq, b2i(r.StrongSignal))
}

// Close 关闭文件并刷新缓冲区
func (d *CsvFileDebugger) Close() {
	if d.writer != nil {
		d.writer.Flush()
	}
	if d.file != nil {
		d.file.Close()
	}
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// NoOpDebugger 是一个空实现，不记录数据时使用
type NoOpDebugger struct{}

func (d *NoOpDebugger) Record(rep TickReport) {}
func (d *NoOpDebugger) Close()                {}
