// Command capture streams frames from a camera and writes each frame to its
// own file; it does not write a concatenated elementary stream.
// Configuration comes from a YAML file so a capture setup is reproducible.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	uvc "github.com/jeffwitz/libusb-uvc"
)

type captureConfig struct {
	uvc.Config `yaml:",inline"`

	Frames  int    `yaml:"frames"`
	Output  string `yaml:"output"`
	Verbose bool   `yaml:"verbose"`
}

func main() {
	configPath := flag.String("config", "capture.yaml", "path to capture configuration")
	flag.Parse()

	var cfg captureConfig
	cfg.Frames = 10
	cfg.Output = "frames"
	data, err := os.ReadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading config: %v\n", err)
		os.Exit(1)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "parsing config: %v\n", err)
		os.Exit(1)
	}

	level := zerolog.InfoLevel
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(level)
	cfg.Logger = log

	dev, err := uvc.Open(cfg.Config)
	if err != nil {
		log.Fatal().Err(err).Msg("open failed")
	}
	defer dev.Close()

	stream, err := dev.ConfigureStream()
	if err != nil {
		log.Fatal().Err(err).Msg("stream configuration failed")
	}
	defer stream.Stop()

	info := stream.Info()
	log.Info().
		Str("fourcc", info.FourCC).
		Uint16("width", info.Width).
		Uint16("height", info.Height).
		Dur("interval", info.Interval).
		Uint8("alt", info.AltSetting).
		Msg("streaming")

	if err := os.MkdirAll(cfg.Output, 0o755); err != nil {
		log.Fatal().Err(err).Msg("creating output directory")
	}

	for i := 0; i < cfg.Frames; i++ {
		frame, err := stream.NextFrame(5 * time.Second)
		if err != nil {
			log.Fatal().Err(err).Msg("frame read failed")
		}
		name := filepath.Join(cfg.Output, fmt.Sprintf("frame-%04d.%s", frame.Sequence, extensionFor(info.FourCC)))
		if err := os.WriteFile(name, frame.Payload, 0o644); err != nil {
			log.Fatal().Err(err).Msg("writing frame")
		}
		log.Info().Uint64("seq", frame.Sequence).Int("bytes", len(frame.Payload)).Str("file", name).Msg("frame")
	}

	stats := stream.Stats()
	log.Info().
		Uint64("delivered", stats.Delivered).
		Uint64("dropped", stats.Dropped).
		Uint64("truncated", stats.Truncated).
		Msg("done")
}

func extensionFor(fourcc string) string {
	switch fourcc {
	case "MJPG":
		return "jpg"
	case "H264":
		return "h264"
	case "H265", "HEVC":
		return "h265"
	default:
		return "raw"
	}
}
