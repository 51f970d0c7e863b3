package dto

// BufferedSnapshot holds an encoded capture frame before flushing to disk.
type BufferedSnapshot struct {
	Filename string
	Session  string
	Data     []byte
}
