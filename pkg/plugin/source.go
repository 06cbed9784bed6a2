package plugin

// Source supplies the raw byte stream a pipeline frames. Read returns io.EOF
// once the input is exhausted.
type Source interface {
	Plugin
	Read(p []byte) (int, error)
	// PercentRead reports progress through a bounded input, 0 to 100.
	PercentRead() float64
}

// Resettable is implemented by sources that can rewind to the start.
type Resettable interface {
	Reset() error
}
