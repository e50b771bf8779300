package gpio

import "github.com/pkg/errors"

// Sample is one scripted set of raw input levels, keyed by channel name.
type Sample map[string]bool

// FakeReader is a test double that returns scripted or settable levels.
type FakeReader struct {
	// Samples contains scripted levels. Advance moves to the next sample;
	// once exhausted the last sample repeats.
	Samples []Sample

	// index tracks current position in Samples
	index int

	// levels overrides scripted samples per channel
	levels map[string]bool

	// Errors, if set for a channel, is returned by Read for that channel.
	Errors map[string]error

	// Reads counts Read calls per channel.
	Reads map[string]int

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{
		Samples: samples,
		levels:  make(map[string]bool),
		Errors:  make(map[string]error),
		Reads:   make(map[string]int),
	}
}

// Read returns the level for channel: an explicit Set wins, then the current sample.
func (f *FakeReader) Read(channel string) (bool, error) {
	f.Reads[channel]++

	if err := f.Errors[channel]; err != nil {
		return false, err
	}
	if v, ok := f.levels[channel]; ok {
		return v, nil
	}
	if len(f.Samples) == 0 {
		return false, errors.Errorf("no level configured for %q", channel)
	}
	v, ok := f.Samples[f.index][channel]
	if !ok {
		return false, errors.Errorf("no level configured for %q", channel)
	}
	return v, nil
}

// Set pins channel to level regardless of the scripted samples.
func (f *FakeReader) Set(channel string, level bool) {
	f.levels[channel] = level
}

// Fail makes subsequent reads of channel return err. A nil err clears the fault.
func (f *FakeReader) Fail(channel string, err error) {
	if err == nil {
		delete(f.Errors, channel)
		return
	}
	f.Errors[channel] = err
}

// Advance moves to the next scripted sample, staying on the last one.
func (f *FakeReader) Advance() {
	if f.index < len(f.Samples)-1 {
		f.index++
	}
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds the samples and clears overrides, faults and counters.
func (f *FakeReader) Reset() {
	f.index = 0
	f.levels = make(map[string]bool)
	f.Errors = make(map[string]error)
	f.Reads = make(map[string]int)
	f.Closed = false
}
