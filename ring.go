package tremor

import (
	"errors"
	"fmt"
)

// ErrWindowBounds 表示窗口长度超出缓冲区容量，属于不变量被破坏
var ErrWindowBounds = errors.New("window exceeds ring capacity")

// MagnitudeRing 是固定容量的加速度模值环形缓冲区
// 只有一个写指针，满了以后覆盖最旧的数据
type MagnitudeRing struct {
	data  []float64
	pos   int    // 下一次写入的位置
	total uint64 // 累计写入次数
}

// NewMagnitudeRing 创建容量为 capacity 的环形缓冲区
func NewMagnitudeRing(capacity int) *MagnitudeRing {
	if capacity <= 0 {
		panic("ring capacity must be positive")
	}
	return &MagnitudeRing{
		data: make([]float64, capacity),
	}
}

// Push 写入一个模值并前移写指针
func (r *MagnitudeRing) Push(v float64) {
	r.data[r.pos] = v
	r.pos = (r.pos + 1) % len(r.data)
	r.total++
}

// Cap 返回容量 C
func (r *MagnitudeRing) Cap() int {
	return len(r.data)
}

// Len 返回当前有效数据个数 (<= C)
func (r *MagnitudeRing) Len() int {
	if r.total >= uint64(len(r.data)) {
		return len(r.data)
	}
	return int(r.total)
}

// Full 缓冲区是否已经写满过一轮
func (r *MagnitudeRing) Full() bool {
	return r.total >= uint64(len(r.data))
}

// Total 返回累计写入次数
func (r *MagnitudeRing) Total() uint64 {
	return r.total
}

// Ready 是否已经写入了至少 l 个样本
func (r *MagnitudeRing) Ready(l int) bool {
	return r.total >= uint64(l)
}

// Window 把最近写入的 len(dst) 个值按时间顺序 (旧 -> 新) 拷贝到 dst
// 写入次数不足时，缺失的前缀补零，绝不读取从未写过的槽位
func (r *MagnitudeRing) Window(dst []float64) error {
	c := len(r.data)
	l := len(dst)
	if l > c {
		return fmt.Errorf("%w: length %d, capacity %d", ErrWindowBounds, l, c)
	}

	// 冷启动时前面 missing 个位置没有数据
	missing := 0
	if r.total < uint64(l) {
		missing = l - int(r.total)
	}

	for i := 0; i < l; i++ {
		if i < missing {
			dst[i] = 0
			continue
		}
		idx := (r.pos + c - l + i) % c
		dst[i] = r.data[idx]
	}
	return nil
}

// Slice 返回全部有效数据 (旧 -> 新)
func (r *MagnitudeRing) Slice() []float64 {
	out := make([]float64, r.Len())
	_ = r.Window(out)
	return out
}
