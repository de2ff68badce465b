package main

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"os"
	"strconv"
	"strings"

	"github.com/gekko3d/probegi"
	"github.com/gekko3d/probegi/gi/volume"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

func loadConfig(ctx *cli.Context) (probegi.Config, error) {
	cfg := probegi.DefaultConfig()
	if path := ctx.GlobalString("config"); path != "" {
		var err error
		if cfg, err = probegi.LoadConfig(path); err != nil {
			return cfg, err
		}
	}
	if path := ctx.GlobalString("data"); path != "" {
		cfg.DataPath = path
	}
	if cfg.DataPath == "" {
		cfg.DataPath = "volume.pgv"
	}
	if ctx.GlobalBool("gpu") {
		cfg.GPU = true
	}
	return cfg, nil
}

// startSystem builds and starts the configured system. The caller releases it.
func startSystem(ctx *cli.Context) (*probegi.System, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	sys, err := probegi.NewSystem(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := sys.Start(); err != nil {
		sys.Release()
		return nil, err
	}
	return sys, nil
}

func requireBaked(sys *probegi.System) error {
	if !sys.Loaded() {
		return fmt.Errorf("%s holds no usable data for this volume; run bake first", sys.Config.DataPath)
	}
	return nil
}

func step(sys *probegi.System, frames int) error {
	for i := 0; i < frames; i++ {
		if err := sys.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Bake captures and saves the volume.
func Bake(ctx *cli.Context) error {
	setupLogging(ctx)

	sys, err := startSystem(ctx)
	if err != nil {
		return err
	}
	defer sys.Release()

	if err := sys.Bake(); err != nil {
		return err
	}
	if err := step(sys, ctx.Int("frames")); err != nil {
		return err
	}
	logger.Noticef("baked %d probes into %s", sys.Volume.ProbeCount(), sys.Config.DataPath)
	logger.Infof("%s", sys.Profiler)
	return displayProbes(sys)
}

// Inspect lists the probes of a baked volume.
func Inspect(ctx *cli.Context) error {
	setupLogging(ctx)

	sys, err := startSystem(ctx)
	if err != nil {
		return err
	}
	defer sys.Release()

	if err := requireBaked(sys); err != nil {
		return err
	}
	if err := step(sys, ctx.Int("frames")); err != nil {
		return err
	}
	return displayProbes(sys)
}

func displayProbes(sys *probegi.System) error {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Index", "Position", "Sky", "L0 (rgb)", "Irradiance up"})
	up := mgl32.Vec3{0, 1, 0}
	for _, p := range sys.Volume.Probes() {
		sh, err := p.SH9()
		if err != nil {
			return err
		}
		e := sh.Irradiance(up)
		table.Append([]string{
			strconv.Itoa(p.Index()),
			formatVec3(p.Position),
			fmt.Sprintf("%02.1f %%", p.SkyRatio()*100),
			formatVec3(sh[0]),
			formatVec3(e),
		})
	}
	u := sys.Volume.Uniforms()
	table.SetFooter([]string{"", "", "", "GI intensity", fmt.Sprintf("%g", u.GIIntensity)})
	table.Render()
	logger.Noticef("volume %v at %v\n%s", sys.Volume.Size(), sys.Volume.Anchor(), buf.String())
	return nil
}

// Shade prints the irradiance reconstructed at a world position.
func Shade(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 3 {
		return errors.New("expected x y z position arguments")
	}
	var pos mgl32.Vec3
	for i := range pos {
		f, err := strconv.ParseFloat(ctx.Args().Get(i), 32)
		if err != nil {
			return fmt.Errorf("position: %w", err)
		}
		pos[i] = float32(f)
	}
	n, err := parseVec3(ctx.String("normal"))
	if err != nil {
		return fmt.Errorf("normal: %w", err)
	}
	if n.LenSqr() == 0 {
		return errors.New("normal must be non-zero")
	}

	sys, err := startSystem(ctx)
	if err != nil {
		return err
	}
	defer sys.Release()
	if err := requireBaked(sys); err != nil {
		return err
	}
	if err := step(sys, ctx.Int("frames")); err != nil {
		return err
	}
	e, err := sys.Irradiance(pos, n.Normalize())
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, formatVec3(e))
	return nil
}

// Preview writes one probe's surfel atlas to a PNG file.
func Preview(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("expected a probe index argument")
	}
	index, err := strconv.Atoi(ctx.Args().First())
	if err != nil {
		return fmt.Errorf("probe index: %w", err)
	}

	sys, err := startSystem(ctx)
	if err != nil {
		return err
	}
	defer sys.Release()
	if err := requireBaked(sys); err != nil {
		return err
	}
	probes := sys.Volume.Probes()
	if index < 0 || index >= len(probes) {
		return fmt.Errorf("probe index %d outside [0,%d)", index, len(probes))
	}
	p := probes[index]
	if ctx.Bool("radiance") {
		p.DebugMode = volume.ProbeDebugSurfelRadiance
		if err := sys.Step(); err != nil {
			return err
		}
	}
	img, err := p.SurfelAtlas(ctx.Int("scale"))
	if err != nil {
		return err
	}

	out := ctx.String("out")
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return err
	}
	logger.Noticef("wrote %s (probe %d at %v, %.0f%% sky)", out, index, p.Position, p.SkyRatio()*100)
	return nil
}

// PrintConfig dumps the effective config as YAML.
func PrintConfig(ctx *cli.Context) error {
	setupLogging(ctx)

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = ctx.App.Writer.Write(data)
	return err
}

func parseVec3(s string) (mgl32.Vec3, error) {
	var v mgl32.Vec3
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("%q is not x,y,z", s)
	}
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return v, err
		}
		v[i] = float32(f)
	}
	return v, nil
}

func formatVec3(v mgl32.Vec3) string {
	return fmt.Sprintf("%.3f, %.3f, %.3f", v[0], v[1], v[2])
}
