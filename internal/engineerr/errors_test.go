package engineerr

import (
	"errors"
	"testing"
)

func TestClassifyDeviceOpenDetectsBusyText(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"busy", errors.New("miniaudio: device busy"), ErrDeviceBusy},
		{"in use", errors.New("endpoint already in use by another stream"), ErrDeviceBusy},
		{"unrelated", errors.New("invalid parameter"), nil},
		{"nil", nil, nil},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ClassifyDeviceOpen(c.err)
			if c.wantErr == nil {
				if got != c.err {
					t.Fatalf("ClassifyDeviceOpen(%v) = %v, want passthrough", c.err, got)
				}
				return
			}
			if !errors.Is(got, c.wantErr) {
				t.Fatalf("ClassifyDeviceOpen(%v) = %v, want errors.Is(..., %v)", c.err, got, c.wantErr)
			}
		})
	}
}

func TestNotFoundWrapsErrDeviceNotFound(t *testing.T) {
	err := NotFound("Speakers")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("NotFound() = %v, want errors.Is(..., ErrDeviceNotFound)", err)
	}
}
