package main

import (
	"flag"
	"net/http"
	"os"
	"strings"
	"time"

	haar "github.com/esimov/haar/core"
	"github.com/esimov/haar/internal/config"
	"github.com/esimov/haar/internal/log"
)

func main() {
	var (
		addr        = flag.String("addr", ":8081", "HTTP listen address")
		cascadeFile = flag.String("cf", "", "Cascade XML file")
		capture     = flag.String("capture", "./capture.py", "Command writing multipart JPEG frames to its stdout")
		configFile  = flag.String("config", "", "JSON file overriding the tracking parameters")
		logLevel    = flag.String("log", "", "Log level: debug|info|warn|error")
	)
	flag.Parse()

	cfg := config.Tracking()
	if *configFile != "" {
		fc, err := config.Load(*configFile)
		if err != nil {
			log.Error("loading the configuration", "err", err)
			os.Exit(1)
		}
		cfg.Merge(fc)
	}
	if *cascadeFile != "" {
		cfg.Cascade = cascadeFile
	}
	if *logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log.Init(cfg.GetLogLevel())
	haar.SetLogger(log.L().With("component", "detector"))

	if cfg.GetCascade() == "" {
		log.Error("missing cascade file, usage: webcam -cf cascade/haarcascade_frontalface_alt.xml")
		os.Exit(1)
	}
	cascade, err := haar.LoadCascade(cfg.GetCascade())
	if err != nil {
		log.Error("loading the cascade", "path", cfg.GetCascade(), "err", err)
		os.Exit(1)
	}
	det, err := haar.NewDetector(cascade)
	if err != nil {
		log.Error("invalid cascade", "err", err)
		os.Exit(1)
	}

	srv := &server{
		detector: det,
		cfg:      cfg,
		capture:  strings.Fields(*capture),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/cam", srv.cam)

	log.Info("listening", "addr", *addr, "cascade", cfg.GetCascade())
	hs := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := hs.ListenAndServe(); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
