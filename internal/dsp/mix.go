package dsp

// Upmix blends a fraction of the front stereo pair into the rear pair
// before it reaches the ring buffer:
//
//	rear_out[i] = rear[i] + upmix_amount * front[i] * 0.5
//
// amount is expected in [0.0, 1.0]; callers are responsible for
// clamping at the configuration boundary.
func Upmix(rearL, rearR, frontL, frontR, amount float32) (outL, outR float32) {
	outL = rearL + amount*frontL*0.5
	outR = rearR + amount*frontR*0.5
	return
}

// Balance applies a linear pan law to a stereo pair:
// L = 1 - max(0, bal), R = 1 + min(0, bal), bal in [-1, 1].
func Balance(l, r, bal float32) (outL, outR float32) {
	var lGain, rGain float32 = 1, 1
	if bal > 0 {
		lGain = 1 - bal
	} else if bal < 0 {
		rGain = 1 + bal
	}
	return l * lGain, r * rGain
}
