package handler

import (
	"errors"
	"io"
	"net/http"

	"barcodescanner/internal/dto"
	"barcodescanner/internal/logger"
	"barcodescanner/internal/service/camera"
	"barcodescanner/internal/service/decoder"
)

// MaxUploadSize caps uploaded images at 10 MB.
const MaxUploadSize = 10 << 20

// DecodeUploadHandler decodes an uploaded image (multipart field "file") and
// answers {barcodes:[...]} or {detail:"..."}. It is the server side of the
// remote decoder.
func DecodeUploadHandler(dec decoder.Decoder, decodeImage camera.FrameDecoder, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
		file, _, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, logger, http.StatusBadRequest, dto.DecodeErrorResponse{Detail: "file field is required"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeJSON(w, logger, http.StatusBadRequest, dto.DecodeErrorResponse{Detail: "could not read upload"})
			return
		}

		frame, err := decodeImage(data)
		if err != nil {
			writeJSON(w, logger, http.StatusUnprocessableEntity, dto.DecodeErrorResponse{Detail: "unsupported image: " + err.Error()})
			return
		}

		barcodes, err := dec.Decode(r.Context(), frame)
		switch {
		case errors.Is(err, decoder.ErrNoBarcodeFound):
			barcodes = []dto.Barcode{}
		case err != nil:
			logger.Error("Error decoding upload: %v", err)
			writeJSON(w, logger, http.StatusInternalServerError, dto.DecodeErrorResponse{Detail: err.Error()})
			return
		}

		logger.Info("Decoded upload: %d barcode(s)", len(barcodes))
		writeJSON(w, logger, http.StatusOK, dto.DecodeResponse{Barcodes: barcodes})
	}
}
