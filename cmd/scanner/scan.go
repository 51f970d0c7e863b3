package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"barcodescanner/internal/app"
	"barcodescanner/internal/config"
	"barcodescanner/internal/logger"
	"barcodescanner/internal/service/camera"
	"barcodescanner/internal/service/camera/cv"
	"barcodescanner/internal/service/capture"
	"barcodescanner/internal/service/decoder"
	"barcodescanner/internal/service/dedup"
)

var (
	scanRemoteURL string
	scanTimeout   time.Duration
	scanJSON      bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <image>...",
	Short: "Decode barcodes in still images",
	Long: `Runs a single-shot capture on each image and prints the distinct barcodes.

Examples:
  scanner scan shelf.jpg
  scanner scan --remote http://localhost:8080/api/decode a.png b.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		log := logger.NewNop()

		var dec decoder.Decoder
		if scanRemoteURL != "" {
			remote := decoder.NewRemoteDecoder(scanRemoteURL, cv.EncodeJPEG, scanTimeout)
			dec = decoder.NewRegionDecoder(remote, decoder.FullFrame(), log)
		} else {
			built, closer, err := app.BuildDecoder(cfg, log)
			if err != nil {
				return err
			}
			defer closer.Close()
			dec = built
		}

		store := dedup.New(cfg.DedupWindow)
		capturer := capture.New(dec, store, log, nil, capture.WithTimeout(scanTimeout))

		outcomes := make(map[string]capture.Status, len(args))
		for _, path := range args {
			st, err := scanFile(cmd.Context(), capturer, path)
			if err != nil {
				return err
			}
			outcomes[path] = st
			capturer.Reset()
		}

		if scanJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(outcomes)
		}
		for _, path := range args {
			printOutcome(path, outcomes[path])
		}
		return nil
	},
}

func scanFile(ctx context.Context, capturer *capture.Capturer, path string) (capture.Status, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	frame, err := cv.ReadImageFile(path)
	if err != nil {
		return capture.Status{}, err
	}
	stream, err := camera.NewStillSource(frame).Acquire(ctx, camera.Constraints{})
	if err != nil {
		return capture.Status{}, fmt.Errorf("%s: %w", path, err)
	}
	defer stream.Close()
	return capturer.Capture(ctx, stream)
}

func printOutcome(path string, st capture.Status) {
	switch st.State {
	case capture.StateCompleted:
		pterm.Success.Printf("%s: %d barcode(s)\n", path, len(st.Results))
		data := pterm.TableData{{"Format", "Value"}}
		for _, r := range st.Results {
			data = append(data, []string{r.Format, r.Value})
		}
		pterm.DefaultTable.WithHasHeader(true).WithData(data).Render()
	case capture.StateNoResult:
		pterm.Warning.Printf("%s: no barcode found\n", path)
	default:
		pterm.Error.Printf("%s: %s\n", path, st.Message)
	}
}

func init() {
	scanCmd.Flags().StringVar(&scanRemoteURL, "remote", "", "decode through a remote /api/decode endpoint")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", capture.DefaultTimeout, "per-image decode timeout")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "print results as JSON")
}

