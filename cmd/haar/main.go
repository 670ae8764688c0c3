package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/esimov/haar/internal/config"
	"github.com/esimov/haar/internal/marker"
	"github.com/esimov/haar/utils"
	"golang.org/x/term"
)

const banner = `
┬ ┬┌─┐┌─┐┬─┐
├─┤├─┤├─┤├┬┘
┴ ┴┴ ┴┴ ┴┴└─

Go (Golang) Haar cascade object detector.
    Version: %s

`

// pipeName is the file name that indicates stdin/stdout is being used.
const pipeName = "-"

// Version indicates the current build version.
var Version string

func main() {
	var (
		source      = flag.String("in", pipeName, "Source image")
		destination = flag.String("out", pipeName, "Destination image, \"empty\" skips the image output")
		cascadeFile = flag.String("cf", "", "Cascade XML file")
		minSize     = flag.Int("min", 20, "Minimum size of the detection window")
		maxSize     = flag.Int("max", 0, "Maximum size of the detection window, 0 means no limit")
		scaleFactor = flag.Float64("scale", 1.1, "Scale detection window by percentage")
		neighbors   = flag.Int("neighbors", 3, "Minimum number of neighbor hits, 0 returns the raw hits")
		mode        = flag.String("mode", config.ModeAll, "Detection mode: all|single")
		rough       = flag.Bool("rough", false, "Stop at the first scale finding an object (single mode)")
		split       = flag.Int("split", 2, "Number of stages run by the coarse pass")
		workers     = flag.Int("workers", 0, "Number of concurrent workers, 0 means one per CPU")
		downscale   = flag.Int("downscale", 1, "Shrink the image by this factor before the detection")
		equalize    = flag.Bool("equalize", false, "Equalize the histogram before the detection")
		shape       = flag.String("marker", marker.Rect, "Detection marker: rect|circle|ellipse")
		jsonf       = flag.String("json", "", "Output the detections into a json file")
		configFile  = flag.String("config", "", "JSON file with the detection parameters")
	)

	log.SetFlags(0)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, banner, Version)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := &config.Config{}
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			log.Fatalf(utils.DecorateText("Error loading the configuration: %v", utils.ErrorMessage), err)
		}
	}
	// Explicit flags take precedence over the configuration file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "cf":
			cfg.Cascade = cascadeFile
		case "min":
			cfg.MinSize = minSize
		case "max":
			cfg.MaxSize = maxSize
		case "scale":
			cfg.ScaleFactor = scaleFactor
		case "neighbors":
			cfg.MinNeighbors = neighbors
		case "mode":
			cfg.Mode = mode
		case "rough":
			cfg.RoughSearch = rough
		case "split":
			cfg.SplitStage = split
		case "workers":
			cfg.Workers = workers
		case "downscale":
			cfg.ImageScale = downscale
		case "equalize":
			cfg.Equalize = equalize
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf(utils.DecorateText("Invalid parameters: %v", utils.ErrorMessage), err)
	}

	if len(*source) == 0 || cfg.GetCascade() == "" {
		log.Fatal("Usage: haar -in input.jpg -out out.png -cf cascade/haarcascade_frontalface_alt.xml")
	}
	if !marker.Valid(*shape) {
		log.Fatalf("Unsupported marker: %v", *shape)
	}

	start := time.Now()

	spinner := utils.NewSpinner("Detecting objects...", time.Millisecond*100, true)
	spinner.Start()

	fail := func(format string, args ...any) {
		spinner.StopMsg = fmt.Sprintf("Detecting objects... %s\n", utils.DecorateText("failed ✗", utils.ErrorMessage))
		spinner.Stop()
		log.Fatalf(utils.DecorateText(format, utils.ErrorMessage), args...)
	}

	if *destination != "empty" {
		if *destination == pipeName {
			if term.IsTerminal(int(os.Stdout.Fd())) {
				fail("`-` should be used with a pipe for stdout")
			}
		} else if ext := filepath.Ext(*destination); !slices.Contains([]string{".jpg", ".jpeg", ".png"}, ext) {
			fail("Output file type not supported: %v", ext)
		}
	}

	od, err := newObjectDetector(cfg)
	if err != nil {
		fail("Error loading the cascade: %v", err)
	}

	dets, err := od.process(*source, *destination, *shape)
	if err != nil {
		fail("Detection error: %v", err)
	}

	var out io.Writer
	if *jsonf != "" {
		if *jsonf == pipeName {
			out = os.Stdout
		} else {
			f, err := os.Create(*jsonf)
			if err != nil {
				fail("Could not create the json file: %v", err)
			}
			defer f.Close()
			out = f
		}
	}
	spinner.StopMsg = fmt.Sprintf("Detecting objects... %s", utils.DecorateText("finished ✔", utils.SuccessMessage))
	spinner.Stop()

	if len(dets) > 0 {
		log.Printf("\n%s object(s) detected", utils.DecorateText(fmt.Sprint(len(dets)), utils.SuccessMessage))

		if out == os.Stdout {
			log.Print(utils.DecorateText("\nThe coordinates of the detected objects:", utils.SuccessMessage))
		}
		if out != nil {
			if err := json.NewEncoder(out).Encode(dets); err != nil {
				log.Fatalf("Error encoding the json file: %s", err)
			}
		}
	} else {
		log.Print(utils.DecorateText("\nno detected objects!", utils.ErrorMessage))
	}

	log.Printf("\nExecution time: %s\n", utils.DecorateText(utils.FormatTime(time.Since(start)), utils.SuccessMessage))
}
