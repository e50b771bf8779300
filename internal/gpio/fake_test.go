package gpio

import (
	"errors"
	"testing"
)

func TestFakeReaderSamples(t *testing.T) {
	f := NewFakeReader([]Sample{
		{"present": true, "locked": false},
		{"present": false, "locked": true},
	})

	v, err := f.Read("present")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v {
		t.Errorf("sample 0 present: got %v, want true", v)
	}

	f.Advance()
	v, _ = f.Read("present")
	if v {
		t.Errorf("sample 1 present: got %v, want false", v)
	}
	v, _ = f.Read("locked")
	if !v {
		t.Errorf("sample 1 locked: got %v, want true", v)
	}

	// Advancing past the end repeats the last sample
	f.Advance()
	f.Advance()
	v, _ = f.Read("locked")
	if !v {
		t.Errorf("repeat locked: got %v, want true", v)
	}

	if f.Reads["present"] != 2 || f.Reads["locked"] != 2 {
		t.Errorf("read counts: got %v", f.Reads)
	}
}

func TestFakeReaderNoSamples(t *testing.T) {
	f := NewFakeReader(nil)

	if _, err := f.Read("probe"); err == nil {
		t.Error("expected error with no samples")
	}
}

func TestFakeReaderUnknownChannel(t *testing.T) {
	f := NewFakeReader([]Sample{{"probe": true}})

	if _, err := f.Read("present"); err == nil {
		t.Error("expected error for channel missing from sample")
	}
}

func TestFakeReaderSetOverridesSample(t *testing.T) {
	f := NewFakeReader([]Sample{{"probe": false}})
	f.Set("probe", true)

	v, err := f.Read("probe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v {
		t.Error("Set should override the scripted sample")
	}
}

func TestFakeReaderFail(t *testing.T) {
	f := NewFakeReader(nil)
	f.Set("probe", true)
	f.Fail("probe", errors.New("simulated error"))

	_, err := f.Read("probe")
	if err == nil || err.Error() != "simulated error" {
		t.Fatalf("expected simulated error, got %v", err)
	}

	f.Fail("probe", nil)
	if _, err := f.Read("probe"); err != nil {
		t.Errorf("fault should be cleared, got %v", err)
	}
}

func TestFakeReaderClose(t *testing.T) {
	f := NewFakeReader(nil)

	if f.Closed {
		t.Error("should not be closed initially")
	}
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

func TestFakeReaderReset(t *testing.T) {
	f := NewFakeReader([]Sample{{"probe": true}, {"probe": false}})
	f.Advance()
	f.Set("probe", true)
	f.Fail("locked", errors.New("x"))
	f.Close()

	f.Reset()

	v, err := f.Read("probe")
	if err != nil || !v {
		t.Errorf("after reset: got (%v, %v), want (true, nil)", v, err)
	}
	if len(f.Errors) != 0 {
		t.Errorf("errors not cleared: %v", f.Errors)
	}
	if f.Closed {
		t.Error("Closed not cleared")
	}
}
