// Package plotting renders recorded joint torques and velocities, either as
// terminal line charts or as PNG figures.
package plotting

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/san-kum/e3deploy/internal/storage"
)

const (
	TorqueFile   = "torques.png"
	VelocityFile = "joint_velocities.png"
)

var ErrNoSamples = errors.New("plotting: run has no samples")

type Options struct {
	Height int
	Width  int
	// MaxJoints caps how many joints share one terminal chart.
	MaxJoints int
}

func DefaultOptions() Options {
	return Options{Height: 10, Width: 80, MaxJoints: 6}
}

// Series splits samples into per-joint columns over time.
type Series struct {
	Time     []float64
	Torque   [][]float64
	JointVel [][]float64
}

func NewSeries(samples []storage.Sample) (Series, error) {
	if len(samples) == 0 {
		return Series{}, ErrNoSamples
	}
	n := len(samples[0].Torque)
	s := Series{
		Time:     make([]float64, len(samples)),
		Torque:   make([][]float64, n),
		JointVel: make([][]float64, n),
	}
	for j := 0; j < n; j++ {
		s.Torque[j] = make([]float64, len(samples))
		s.JointVel[j] = make([]float64, len(samples))
	}
	for i, smp := range samples {
		s.Time[i] = smp.Time
		for j := 0; j < n; j++ {
			if j < len(smp.Torque) {
				s.Torque[j][i] = smp.Torque[j]
			}
			if j < len(smp.JointVel) {
				s.JointVel[j][i] = smp.JointVel[j]
			}
		}
	}
	return s, nil
}

func (s Series) Joints() int { return len(s.Torque) }

// Terminal writes one chart of torques and one of joint velocities.
func Terminal(w io.Writer, meta storage.RunMetadata, samples []storage.Sample, opts Options) error {
	s, err := NewSeries(samples)
	if err != nil {
		return err
	}
	if s.Joints() == 0 {
		return ErrNoSamples
	}
	n := s.Joints()
	if opts.MaxJoints > 0 && n > opts.MaxJoints {
		n = opts.MaxJoints
	}

	fmt.Fprintf(w, "run: %s\n", meta.ID)
	fmt.Fprintf(w, "samples: %d  joints: %d\n\n", len(samples), s.Joints())

	charts := []struct {
		caption string
		data    [][]float64
	}{
		{"joint torque (N·m)", s.Torque[:n]},
		{"joint velocity (rad/s)", s.JointVel[:n]},
	}
	for _, c := range charts {
		graph := asciigraph.PlotMany(c.data,
			asciigraph.Height(opts.Height),
			asciigraph.Width(opts.Width),
			asciigraph.Caption(c.caption),
		)
		fmt.Fprintln(w, graph)
		fmt.Fprintln(w)
	}
	return nil
}

// SavePNG writes TorqueFile and VelocityFile into dir and returns their paths.
func SavePNG(dir string, meta storage.RunMetadata, samples []storage.Sample) ([]string, error) {
	s, err := NewSeries(samples)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create directory: %w", err)
	}

	names := jointNames(meta, s.Joints())
	figures := []struct {
		file, title, ylabel string
		data                [][]float64
	}{
		{TorqueFile, "Joint Torques", "tau (N·m)", s.Torque},
		{VelocityFile, "Joint Velocities", "dq (rad/s)", s.JointVel},
	}

	var paths []string
	for _, f := range figures {
		p, err := linePlot(f.title, f.ylabel, s.Time, f.data, names)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(dir, f.file)
		if err := savePlotPNG(p, 8, 6, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func jointNames(meta storage.RunMetadata, n int) []string {
	names := make([]string, n)
	for i := range names {
		if i < len(meta.Joints) && meta.Joints[i] != "" {
			names[i] = meta.Joints[i]
		} else {
			names[i] = fmt.Sprintf("j%d", i)
		}
	}
	return names
}

func linePlot(title, ylabel string, xs []float64, series [][]float64, names []string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())

	for j, ys := range series {
		pts := make(plotter.XYs, len(xs))
		for i := range xs {
			pts[i].X = xs[i]
			pts[i].Y = ys[i]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = plotutil.Color(j)
		p.Add(line)
		p.Legend.Add(names[j], line)
	}
	p.Legend.Top = true
	return p, nil
}

func savePlotPNG(p *plot.Plot, widthIn, heightIn float64, filename string) error {
	w := vg.Length(widthIn) * vg.Inch
	h := vg.Length(heightIn) * vg.Inch

	c := vgimg.NewWith(
		vgimg.UseWH(w, h),
		vgimg.UseDPI(150),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	pngc := vgimg.PngCanvas{Canvas: c}
	if _, err := pngc.WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return bw.Flush()
}
