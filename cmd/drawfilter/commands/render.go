package commands

import (
	"fmt"
	"image"
	"os"

	"github.com/bryanchriswhite/drawfilter/internal/capture"
	"github.com/bryanchriswhite/drawfilter/internal/config"
	"github.com/bryanchriswhite/drawfilter/internal/detection"
	"github.com/bryanchriswhite/drawfilter/internal/filter"
	"github.com/bryanchriswhite/drawfilter/internal/geometry"
	"github.com/bryanchriswhite/drawfilter/internal/media"
	"github.com/bryanchriswhite/drawfilter/internal/osd"
	"github.com/bryanchriswhite/drawfilter/internal/output"
	"github.com/spf13/cobra"
	"golang.org/x/image/bmp"
)

var renderCmd = &cobra.Command{
	Use:   "render OUTPUT.bmp",
	Short: "Draw boxes on a test frame and write it as a bitmap",
	Long: `Render one test pattern frame through the draw filter and save the
result. With --hw the boxes go through the OSD region builder instead and
the written image is the frame with the region composited on top.`,
	Example: `  # Two boxes on a 640x360 frame
  drawfilter render out.bmp --rect 10,10,200,120 --rect 300,40,420,300

  # Same through the OSD path, region only
  drawfilter render region.bmp --hw --region-only --rect 10,10,200,120`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

var (
	renderRects      []string
	renderWidth      int
	renderHeight     int
	renderThickness  int
	renderHW         bool
	renderRegionOnly bool
)

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringArrayVar(&renderRects, "rect", nil, "box as left,top,right,bottom (repeatable)")
	renderCmd.Flags().IntVar(&renderWidth, "width", 640, "frame width")
	renderCmd.Flags().IntVar(&renderHeight, "height", 360, "frame height")
	renderCmd.Flags().IntVar(&renderThickness, "thickness", 2, "outline thickness")
	renderCmd.Flags().BoolVar(&renderHW, "hw", false, "use the OSD region path")
	renderCmd.Flags().BoolVar(&renderRegionOnly, "region-only", false, "with --hw, write only the palette region")
}

func parseRect(s string) (geometry.Rect, error) {
	var r geometry.Rect
	if _, err := fmt.Sscanf(s, "%d,%d,%d,%d", &r.Left, &r.Top, &r.Right, &r.Bottom); err != nil {
		return r, fmt.Errorf("invalid rect %q (want left,top,right,bottom): %w", s, err)
	}
	return r, nil
}

func runRender(cmd *cobra.Command, args []string) error {
	results := make([]detection.Result, 0, len(renderRects))
	for _, s := range renderRects {
		r, err := parseRect(s)
		if err != nil {
			return err
		}
		results = append(results, detection.Result{Rect: r})
	}

	info := media.ImageInfo{Format: media.FormatNV12, Width: renderWidth, Height: renderHeight}
	frame, err := media.AllocImageBuffer(info, media.NowMicros())
	if err != nil {
		return err
	}
	capture.FillPattern(frame, 0)

	fc := config.DefaultFilter()
	fc.RectThickness = renderThickness
	fc.HardwareDraw = renderHW
	stage := filter.New(fc)
	if err := stage.Err(); err != nil {
		return err
	}

	// The capture sink decodes each payload like a real OSD consumer would
	var region *osd.Region
	stage.SetSink(osd.SinkFunc(func(payload []byte) error {
		region = &osd.Region{}
		return region.UnmarshalBinary(payload)
	}))

	stage.Control(filter.PushResultBatch{
		Results:      results,
		Timestamp:    frame.AtomicClock(),
		HasTimestamp: true,
	})
	if _, err := stage.Process(frame, frame); err != nil {
		return err
	}

	var img image.Image
	switch {
	case renderHW && renderRegionOnly:
		if region == nil || !region.Enable {
			return fmt.Errorf("no OSD region was produced")
		}
		img = output.PaletteImage(region, osd.DefaultPalette)
	default:
		rgba, err := output.ToRGBA(frame)
		if err != nil {
			return err
		}
		if region != nil {
			output.Composite(rgba, region, osd.DefaultPalette)
		}
		img = rgba
	}

	if err := writeBitmap(args[0], img); err != nil {
		return err
	}

	fmt.Printf("Wrote %s (%d boxes, stats %+v)\n", args[0], len(results), stage.Stats())
	return nil
}

// writeBitmap encodes img to path, reporting close errors as write errors
func writeBitmap(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := bmp.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode bitmap: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
