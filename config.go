package tremor

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// 冷启动策略
const (
	ColdStartGate     = "gate"      // 缓冲区未满 L 个样本前不做分析
	ColdStartZeroFill = "zero-fill" // 立即分析，缺失的前缀补零
)

// Config 结构体用于集中管理检测器的所有可调参数和阈值
type Config struct {
	// --- 传感器 (LSM6DSL) ---
	Sensor struct {
		SampleRate  float64       `toml:"sample_rate"`  // 输出数据率 (Hz)，同时用于 bin -> 频率换算
		Port        string        `toml:"port"`         // 串口桥设备名
		BaudRate    int           `toml:"baud_rate"`    // 串口波特率
		Address     byte          `toml:"address"`      // I2C 7 位地址
		SettleDelay time.Duration `toml:"settle_delay"` // 上电后等待多久再读 WHO_AM_I
		Retries     int           `toml:"retries"`      // 总线读写失败的重试次数
		RetryMin    time.Duration `toml:"retry_min"`    // 退避最小间隔
		RetryMax    time.Duration `toml:"retry_max"`    // 退避最大间隔
	}

	// --- 频谱分析 ---
	Analysis struct {
		WindowLength   int    `toml:"window_length"`   // FFT 点数 L，必须是 2 的幂
		BufferCapacity int    `toml:"buffer_capacity"` // 环形缓冲区容量 C，必须 >= L
		Taper          string `toml:"taper"`           // 窗函数: none / hann / blackman。默认 none，阈值按未加窗幅度标定
		ColdStart      string `toml:"cold_start"`      // gate 或 zero-fill
	}

	// --- 频带阈值 ---
	Bands struct {
		TremorMin       float64 `toml:"tremor_min"`       // 震颤频带下限 (含)
		TremorMax       float64 `toml:"tremor_max"`       // 震颤频带上限 (含)
		TremorThreshold float64 `toml:"tremor_threshold"` // bin 幅度阈值
		TremorMinBins   int     `toml:"tremor_min_bins"`  // 达到阈值的 bin 数

		DyskinesiaMin       float64 `toml:"dyskinesia_min"` // 下限 (不含)
		DyskinesiaMax       float64 `toml:"dyskinesia_max"` // 上限 (含)
		DyskinesiaThreshold float64 `toml:"dyskinesia_threshold"`
		DyskinesiaMinBins   int     `toml:"dyskinesia_min_bins"`

		StrongSignal float64 `toml:"strong_signal"` // 任一频带峰值达到此值即为强信号
	}

	// --- 主循环 ---
	Loop struct {
		TickInterval   time.Duration `toml:"tick_interval"`   // 轮询间隔，约 10ms
		ReportInterval time.Duration `toml:"report_interval"` // 会话汇总日志周期，0 表示关闭
	}

	// --- 指示器 ---
	Indicators struct {
		LEDs      bool              `toml:"leds"`      // 是否驱动 /sys/class/leds 下的 LED
		LEDNames  map[string]string `toml:"led_names"` // 指示器名 -> LED 名
		Tone      bool              `toml:"tone"`      // 是否开启提示音
		ToneLevel float64           `toml:"tone_level"`
	}

	// --- 采集/调试 ---
	Capture struct {
		RecordFile string  `toml:"record_file"` // 录制原始三轴数据 (WAV)
		TraceFile  string  `toml:"trace_file"`  // 逐帧 CSV 调试输出
		FullScale  float64 `toml:"full_scale"`  // WAV 满量程 (g)
	}
}

// DefaultConfig 返回固件中编译进去的默认值
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Sensor.SampleRate = 104.0
	cfg.Sensor.Port = "/dev/ttyACM0"
	cfg.Sensor.BaudRate = 115200
	cfg.Sensor.Address = 0x6A
	cfg.Sensor.SettleDelay = 500 * time.Millisecond
	cfg.Sensor.Retries = 3
	cfg.Sensor.RetryMin = 2 * time.Millisecond
	cfg.Sensor.RetryMax = 50 * time.Millisecond

	cfg.Analysis.WindowLength = 256
	cfg.Analysis.BufferCapacity = 312
	cfg.Analysis.Taper = "none"
	cfg.Analysis.ColdStart = ColdStartGate

	cfg.Bands.TremorMin = 3.0
	cfg.Bands.TremorMax = 5.0
	cfg.Bands.TremorThreshold = 14.0
	cfg.Bands.TremorMinBins = 2

	cfg.Bands.DyskinesiaMin = 5.0
	cfg.Bands.DyskinesiaMax = 7.0
	cfg.Bands.DyskinesiaThreshold = 20.0 // 早期版本使用 15.0
	cfg.Bands.DyskinesiaMinBins = 3

	cfg.Bands.StrongSignal = 80.0

	cfg.Loop.TickInterval = 10 * time.Millisecond
	cfg.Loop.ReportInterval = 5 * time.Second

	cfg.Indicators.LEDNames = map[string]string{
		IndicatorTremor.String():       "tremor",
		IndicatorDyskinesia.String():   "dyskinesia",
		IndicatorStrongSignal.String(): "strong",
		IndicatorCollecting.String():   "collecting",
	}
	cfg.Indicators.ToneLevel = 0.2

	cfg.Capture.FullScale = 2.0

	return cfg
}

// LoadConfig 在默认值之上叠加 TOML 文件中的设置
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查配置是否满足检测器的不变量
func (c *Config) Validate() error {
	var errs []error

	l := c.Analysis.WindowLength
	if l <= 0 || l&(l-1) != 0 {
		errs = append(errs, fmt.Errorf("window_length must be a power of two, got %d", l))
	}
	if c.Analysis.BufferCapacity < l {
		errs = append(errs, fmt.Errorf("buffer_capacity %d smaller than window_length %d", c.Analysis.BufferCapacity, l))
	}
	if c.Sensor.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %v", c.Sensor.SampleRate))
	}
	switch c.Analysis.ColdStart {
	case ColdStartGate, ColdStartZeroFill:
	default:
		errs = append(errs, fmt.Errorf("unknown cold_start policy %q", c.Analysis.ColdStart))
	}
	switch c.Analysis.Taper {
	case "", "none", "hann", "blackman":
	default:
		errs = append(errs, fmt.Errorf("unknown taper %q", c.Analysis.Taper))
	}
	if c.Bands.TremorMin > c.Bands.TremorMax || c.Bands.DyskinesiaMin > c.Bands.DyskinesiaMax {
		errs = append(errs, errors.New("band lower edge above upper edge"))
	}
	if c.Loop.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick_interval must be positive, got %v", c.Loop.TickInterval))
	}

	return errors.Join(errs...)
}
