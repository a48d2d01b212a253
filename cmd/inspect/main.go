// Command inspect opens a camera, prints its descriptor tree and the
// validated control table.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	uvc "github.com/jeffwitz/libusb-uvc"
	"github.com/jeffwitz/libusb-uvc/pkg/descriptors"
)

func main() {
	vid := flag.Uint("vid", 0, "vendor id")
	pid := flag.Uint("pid", 0, "product id")
	serial := flag.String("serial", "", "serial number (optional)")
	quirksDir := flag.String("quirks", "quirks", "quirks directory")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(level)

	dev, err := uvc.Open(uvc.Config{
		VendorID:     uint16(*vid),
		ProductID:    uint16(*pid),
		SerialNumber: *serial,
		QuirksDir:    *quirksDir,
		Logger:       log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("open failed")
	}
	defer dev.Close()

	info, err := dev.DeviceInfo()
	if err != nil {
		log.Fatal().Err(err).Msg("descriptor parse failed")
	}

	fmt.Printf("UVC %x.%02x, VC interface %d\n", info.BCDUVC>>8, info.BCDUVC&0xff, info.VCInterfaceNumber)

	for _, ci := range info.ControlInterfaces {
		switch u := ci.Descriptor.(type) {
		case *descriptors.CameraTerminalDescriptor:
			fmt.Printf("  camera terminal id=%d\n", u.TerminalID)
		case *descriptors.ProcessingUnitDescriptor:
			fmt.Printf("  processing unit id=%d\n", u.UnitID)
		case *descriptors.ExtensionUnitDescriptor:
			fmt.Printf("  extension unit id=%d guid=%s controls=%d\n", u.UnitID, u.GUIDExtensionCode, u.NumControls)
		default:
			fmt.Printf("  unit %T\n", u)
		}
	}

	for i, si := range info.StreamingInterfaces {
		fmt.Printf("streaming interface %d (interface %d, UVC %s)\n", i, si.InterfaceNumber(), si.UVCVersionString())
		for _, group := range si.FormatGroups() {
			fmt.Printf("  format %d: %s\n", group.Format.Index(), group.Format.FourCC())
			for _, frame := range group.Frames {
				w, h := frame.Size()
				fmt.Printf("    frame %d: %dx%d default %v", frame.Index(), w, h, frame.DefaultInterval())
				if frame.StillSupported() {
					fmt.Printf(" (still)")
				}
				fmt.Println()
			}
		}
	}

	controls, err := dev.EnumerateControls()
	if err != nil {
		log.Fatal().Err(err).Msg("control enumeration failed")
	}
	fmt.Printf("controls (%d validated):\n", len(controls))
	for _, c := range controls {
		fmt.Printf("  unit=%d selector=0x%02x %-36s type=%-6s info=0x%02x", c.UnitID, c.Selector, c.Name, c.Type, c.Info)
		if c.HasRange {
			fmt.Printf(" range=[%d..%d] step=%d default=%d", c.Min, c.Max, c.Res, c.Def)
		}
		fmt.Println()
	}
}
