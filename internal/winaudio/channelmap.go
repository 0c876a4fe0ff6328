package winaudio

import (
	"github.com/agalue/rearfeed/internal/config"
	"github.com/agalue/rearfeed/internal/engineerr"
)

// channelLayout maps a ChannelSource to its index within one interleaved
// frame, for the three supported channel counts: 4, 6, and 8.
type channelLayout struct {
	fl, fr, fc, lfe, rl, rr, sl, sr int
	hasCenter, hasSurround          bool
}

func layoutFor(channels int) (channelLayout, error) {
	switch channels {
	case 4:
		return channelLayout{fl: 0, fr: 1, rl: 2, rr: 3}, nil
	case 6:
		return channelLayout{fl: 0, fr: 1, fc: 2, lfe: 3, rl: 4, rr: 5, hasCenter: true}, nil
	case 8:
		return channelLayout{fl: 0, fr: 1, fc: 2, lfe: 3, rl: 4, rr: 5, sl: 6, sr: 7, hasCenter: true, hasSurround: true}, nil
	default:
		if channels < 4 {
			return channelLayout{}, engineerr.UnsupportedFormat("insufficient channel count")
		}
		return channelLayout{}, engineerr.UnsupportedFormat("unrecognized channel layout")
	}
}

// index resolves a ChannelSource to a frame index, reporting ok=false
// for Mix and Silence, which the caller must special-case.
func (l channelLayout) index(s config.ChannelSource) (idx int, ok bool) {
	switch s {
	case config.SourceFL:
		return l.fl, true
	case config.SourceFR:
		return l.fr, true
	case config.SourceRL:
		return l.rl, true
	case config.SourceRR:
		return l.rr, true
	case config.SourceFC:
		return l.fc, l.hasCenter
	case config.SourceLFE:
		return l.lfe, l.hasCenter
	case config.SourceSL:
		return l.sl, l.hasSurround
	case config.SourceSR:
		return l.sr, l.hasSurround
	default:
		return 0, false
	}
}

// extractor precomputes the frame indices an engine configuration needs,
// resolved once at configuration time rather than matched per-sample in
// the capture callback.
type extractor struct {
	layout          channelLayout
	leftSrc         config.ChannelSource
	rightSrc        config.ChannelSource
	leftIdx         int
	rightIdx        int
	leftIsMix       bool
	leftIsSilence   bool
	rightIsMix      bool
	rightIsSilence  bool
}

func newExtractor(channels int, leftSrc, rightSrc config.ChannelSource) (*extractor, error) {
	layout, err := layoutFor(channels)
	if err != nil {
		return nil, err
	}
	e := &extractor{layout: layout, leftSrc: leftSrc, rightSrc: rightSrc}

	switch leftSrc {
	case config.SourceMix:
		e.leftIsMix = true
	case config.SourceSilence:
		e.leftIsSilence = true
	default:
		idx, ok := layout.index(leftSrc)
		if !ok {
			return nil, engineerr.UnsupportedFormat("left channel source not present in this layout")
		}
		e.leftIdx = idx
	}

	switch rightSrc {
	case config.SourceMix:
		e.rightIsMix = true
	case config.SourceSilence:
		e.rightIsSilence = true
	default:
		idx, ok := layout.index(rightSrc)
		if !ok {
			return nil, engineerr.UnsupportedFormat("right channel source not present in this layout")
		}
		e.rightIdx = idx
	}

	return e, nil
}

// extract resolves one side's sample from an interleaved frame.
func (e *extractor) extract(frame []float32, isMix, isSilence bool, idx int) float32 {
	switch {
	case isSilence:
		return 0
	case isMix:
		return (frame[e.layout.fl] + frame[e.layout.fr]) * 0.5
	default:
		return frame[idx]
	}
}

// Left resolves the left-side sample from one interleaved frame.
func (e *extractor) Left(frame []float32) float32 {
	return e.extract(frame, e.leftIsMix, e.leftIsSilence, e.leftIdx)
}

// Right resolves the right-side sample from one interleaved frame.
func (e *extractor) Right(frame []float32) float32 {
	return e.extract(frame, e.rightIsMix, e.rightIsSilence, e.rightIdx)
}

// Front returns the FL/FR pair for upmix blending.
func (e *extractor) Front(frame []float32) (fl, fr float32) {
	return frame[e.layout.fl], frame[e.layout.fr]
}

// HasRearPair reports whether this layout has a distinct RL/RR pair
// available for upmix.
func (e *extractor) HasRearPair() bool {
	return true // every supported layout (4/6/8ch) carries RL/RR
}
