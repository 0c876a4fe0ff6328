package winaudio

import (
	"errors"
	"testing"

	"github.com/agalue/rearfeed/internal/config"
	"github.com/agalue/rearfeed/internal/engineerr"
)

func TestNewExtractorRejectsInsufficientChannels(t *testing.T) {
	_, err := newExtractor(2, config.SourceRL, config.SourceRR)
	if !errors.Is(err, engineerr.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestNewExtractorRejectsUnrecognizedLayout(t *testing.T) {
	_, err := newExtractor(5, config.SourceRL, config.SourceRR)
	if !errors.Is(err, engineerr.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestNewExtractorRejectsSourceNotInLayout(t *testing.T) {
	_, err := newExtractor(4, config.SourceSL, config.SourceRR)
	if !errors.Is(err, engineerr.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat for SL on a 4ch layout", err)
	}
}

func TestExtractorResolvesRearPairOn4Channel(t *testing.T) {
	e, err := newExtractor(4, config.SourceRL, config.SourceRR)
	if err != nil {
		t.Fatalf("newExtractor: %v", err)
	}
	frame := []float32{0.1, 0.2, 0.3, 0.4} // FL, FR, RL, RR
	if got := e.Left(frame); got != 0.3 {
		t.Fatalf("Left = %v, want 0.3", got)
	}
	if got := e.Right(frame); got != 0.4 {
		t.Fatalf("Right = %v, want 0.4", got)
	}
}

func TestExtractorResolvesSLSROn8Channel(t *testing.T) {
	e, err := newExtractor(8, config.SourceSL, config.SourceSR)
	if err != nil {
		t.Fatalf("newExtractor: %v", err)
	}
	frame := []float32{0, 0, 0, 0, 0, 0, 0.7, 0.8}
	if got := e.Left(frame); got != 0.7 {
		t.Fatalf("Left = %v, want 0.7", got)
	}
	if got := e.Right(frame); got != 0.8 {
		t.Fatalf("Right = %v, want 0.8", got)
	}
}

func TestExtractorMixBlendsFrontPair(t *testing.T) {
	e, err := newExtractor(6, config.SourceMix, config.SourceRR)
	if err != nil {
		t.Fatalf("newExtractor: %v", err)
	}
	frame := []float32{1.0, 0.0, 0, 0, 0, 0.5} // FL=1, FR=0, RR=0.5
	if got := e.Left(frame); got != 0.5 {
		t.Fatalf("Left (mix) = %v, want 0.5", got)
	}
}

func TestExtractorSilenceIsZero(t *testing.T) {
	e, err := newExtractor(6, config.SourceSilence, config.SourceRR)
	if err != nil {
		t.Fatalf("newExtractor: %v", err)
	}
	frame := []float32{1, 1, 1, 1, 1, 1}
	if got := e.Left(frame); got != 0 {
		t.Fatalf("Left (silence) = %v, want 0", got)
	}
}

func TestExtractorRejectsCenterAndLFEOn4Channel(t *testing.T) {
	if _, err := newExtractor(4, config.SourceFC, config.SourceRR); !errors.Is(err, engineerr.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat for FC on a 4ch layout", err)
	}
	if _, err := newExtractor(4, config.SourceLFE, config.SourceRR); !errors.Is(err, engineerr.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat for LFE on a 4ch layout", err)
	}
}
