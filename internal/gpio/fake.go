package gpio

import "errors"

// ErrNoSamples is returned by a FakeReader with nothing scripted.
var ErrNoSamples = errors.New("gpio: fake reader has no samples")

// Sample is one scripted pair of raw pin levels (true = high, contact open).
type Sample struct {
	OpenHigh  bool
	CloseHigh bool
}

// Engaged builds a Sample from contact states, where true means the contact
// is closed and pulls its pin low.
func Engaged(open, close bool) Sample {
	return Sample{OpenHigh: !open, CloseHigh: !close}
}

// FakeReader plays back scripted samples. After the script runs out the last
// sample repeats, which models contacts that stay where they are.
type FakeReader struct {
	Samples []Sample

	// ReadError, if set, is returned by every Read.
	ReadError error

	// Reads counts calls to Read, including failed ones.
	Reads int

	Closed bool

	next int
}

// NewFakeReader creates a FakeReader playing back samples.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample. Failures report both contacts
// released, as the real reader does.
func (f *FakeReader) Read() (bool, bool, error) {
	f.Reads++
	if f.ReadError != nil {
		return true, true, f.ReadError
	}
	if len(f.Samples) == 0 {
		return true, true, ErrNoSamples
	}

	s := f.Samples[f.next]
	if f.next+1 < len(f.Samples) {
		f.next++
	}
	return s.OpenHigh, s.CloseHigh, nil
}

func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds the script.
func (f *FakeReader) Reset() {
	f.next = 0
	f.Reads = 0
	f.Closed = false
}
