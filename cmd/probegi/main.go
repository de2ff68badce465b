package main

import (
	"os"

	"github.com/urfave/cli"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "probegi"
	app.Usage = "bake and inspect voxelized GI probe volumes"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "config, c",
			Usage: "YAML bake file; built-in defaults when empty",
		},
		cli.StringFlag{
			Name:  "data, d",
			Usage: "override the volume data file from the config",
		},
		cli.BoolFlag{
			Name:  "gpu",
			Usage: "run the kernels through wgpu instead of on the host",
		},
	}
	frames := cli.IntFlag{
		Name:  "frames, f",
		Value: 1,
		Usage: "injection steps to run; more steps accumulate more bounces",
	}
	app.Commands = []cli.Command{
		{
			Name:  "bake",
			Usage: "capture every probe from the configured scene and save the volume data",
			Description: `
Generate the probe grid, render the world position, normal and albedo cubemaps
around every probe, sample 512 surfels per probe and write the result to the
volume data file. Injection is then stepped to report the resulting SH9.`,
			Flags:  []cli.Flag{frames},
			Action: Bake,
		},
		{
			Name:   "inspect",
			Usage:  "list the probes of a baked volume",
			Flags:  []cli.Flag{frames},
			Action: Inspect,
		},
		{
			Name:      "shade",
			Usage:     "reconstruct irradiance at a world position",
			ArgsUsage: "x y z",
			Flags: []cli.Flag{
				frames,
				cli.StringFlag{
					Name:  "normal, n",
					Value: "0,1,0",
					Usage: "surface normal as x,y,z",
				},
			},
			Action: Shade,
		},
		{
			Name:      "preview",
			Usage:     "write a probe's surfel atlas as a PNG",
			ArgsUsage: "probe_index",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "out, o",
					Value: "surfels.png",
					Usage: "image filename",
				},
				cli.IntFlag{
					Name:  "scale",
					Value: 8,
					Usage: "pixels per surfel",
				},
				cli.BoolFlag{
					Name:  "radiance",
					Usage: "show shaded radiance instead of albedo",
				},
			},
			Action: Preview,
		},
		{
			Name:   "config",
			Usage:  "print the effective bake config",
			Action: PrintConfig,
		},
	}
	return app
}
