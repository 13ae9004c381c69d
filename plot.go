package tremor

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// RenderSpectrum 把一帧的幅度谱画成 PNG，标出两个频带的阈值线
func RenderSpectrum(bins []Bin, r Result, cfg *Config) ([]byte, error) {
	if len(bins) < 2 {
		return nil, fmt.Errorf("no spectrum to plot")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Magnitude spectrum (%s, tremor bins %d, dyskinesia bins %d)",
		r.Class, r.TremorCount, r.DyskinesiaCount)
	p.X.Label.Text = "Frequency (Hz)"
	p.Y.Label.Text = "Amplitude"
	p.Add(plotter.NewGrid())

	// bin 0 是直流，幅度太大会压扁其它部分
	pts := make(plotter.XYs, 0, len(bins)-1)
	for _, b := range bins[1:] {
		pts = append(pts, plotter.XY{X: b.Frequency, Y: b.Amplitude})
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = color.RGBA{B: 200, A: 255}
	p.Add(line)
	p.Legend.Add("amplitude", line)

	bands := []struct {
		name      string
		lo, hi    float64
		threshold float64
		color     color.Color
	}{
		{"tremor threshold", cfg.Bands.TremorMin, cfg.Bands.TremorMax, cfg.Bands.TremorThreshold, color.RGBA{R: 220, A: 255}},
		{"dyskinesia threshold", cfg.Bands.DyskinesiaMin, cfg.Bands.DyskinesiaMax, cfg.Bands.DyskinesiaThreshold, color.RGBA{R: 230, G: 140, A: 255}},
	}
	for _, b := range bands {
		th, err := plotter.NewLine(plotter.XYs{{X: b.lo, Y: b.threshold}, {X: b.hi, Y: b.threshold}})
		if err != nil {
			return nil, err
		}
		th.Color = b.color
		th.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
		p.Add(th)
		p.Legend.Add(b.name, th)
	}

	strong, err := plotter.NewLine(plotter.XYs{
		{X: cfg.Bands.TremorMin, Y: cfg.Bands.StrongSignal},
		{X: cfg.Bands.DyskinesiaMax, Y: cfg.Bands.StrongSignal},
	})
	if err != nil {
		return nil, err
	}
	strong.Color = color.Gray{Y: 100}
	strong.LineStyle.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
	p.Add(strong)
	p.Legend.Add("strong signal", strong)

	p.X.Min = 0
	p.X.Max = bins[len(bins)-1].Frequency

	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
