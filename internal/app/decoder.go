package app

import (
	"fmt"
	"io"

	"barcodescanner/internal/config"
	"barcodescanner/internal/logger"
	"barcodescanner/internal/service/camera/cv"
	"barcodescanner/internal/service/decoder"
	"barcodescanner/internal/service/decoder/cvqr"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// BuildDecoder returns the configured decode backend wrapped in the region
// strategy. The closer releases native resources.
func BuildDecoder(cfg *config.Config, logger *logger.Logger) (decoder.Decoder, io.Closer, error) {
	strategy := decoder.DefaultStrategy()
	if cfg.RegionsFile != "" {
		loaded, err := decoder.LoadStrategy(cfg.RegionsFile)
		if err != nil {
			return nil, nil, err
		}
		strategy = loaded
		logger.Info("Loaded %d scan region(s) from %s", len(strategy), cfg.RegionsFile)
	}

	switch cfg.Decoder {
	case config.DecoderZXing, "":
		inner, err := decoder.NewZXingDecoder(cfg.DecoderFormats...)
		if err != nil {
			return nil, nil, err
		}
		return decoder.NewRegionDecoder(inner, strategy, logger), nopCloser{}, nil

	case config.DecoderOpenCV:
		inner := cvqr.New()
		return decoder.NewRegionDecoder(inner, strategy, logger), inner, nil

	case config.DecoderRemote:
		if cfg.DecoderURL == "" {
			return nil, nil, fmt.Errorf("DECODER_URL is required for the remote decoder")
		}
		// One upload per frame; region splitting is left to the remote side.
		inner := decoder.NewRemoteDecoder(cfg.DecoderURL, cv.EncodeJPEG, cfg.CaptureTimeout)
		return decoder.NewRegionDecoder(inner, decoder.FullFrame(), logger), nopCloser{}, nil

	default:
		return nil, nil, fmt.Errorf("unknown decoder %q", cfg.Decoder)
	}
}
