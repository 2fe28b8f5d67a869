package runtime

import (
	"time"

	"github.com/sfncore/frankentui/evidence"
	"github.com/sfncore/frankentui/render"
)

// PI gains and hysteresis defaults for the degradation controller.
const (
	DefaultFrameTarget = 16 * time.Millisecond
	DefaultKp          = 0.5
	DefaultKi          = 0.05

	// hysteresisFrames is how many consecutive frames must propose a tier
	// before the controller switches; prevents flapping at a boundary.
	hysteresisFrames = 3

	// integralClamp bounds the accumulated error (anti-windup), in ms.
	integralClamp = 200.0
)

// Degrader is a PI controller over observed frame time. Output is a fidelity
// tier; each observed frame either confirms the current tier or votes for a
// new one, and a tier change needs a run of confirming frames.
type Degrader struct {
	target time.Duration
	kp     float64
	ki     float64

	integral float64

	tier         render.Tier
	pendingTier  render.Tier
	pendingCount int

	override    render.Tier
	hasOverride bool

	sink *evidence.Sink
}

// NewDegrader creates a controller at TierFull with the default gains.
func NewDegrader(sink *evidence.Sink) *Degrader {
	return &Degrader{
		target: DefaultFrameTarget,
		kp:     DefaultKp,
		ki:     DefaultKi,
		sink:   sink,
	}
}

// SetTarget overrides the frame-time target.
func (d *Degrader) SetTarget(target time.Duration) {
	if target >= time.Millisecond {
		d.target = target
	}
}

// SetGains overrides the PI gains.
func (d *Degrader) SetGains(kp, ki float64) {
	if kp > 0 {
		d.kp = kp
	}
	if ki >= 0 {
		d.ki = ki
	}
}

// Tier returns the currently selected fidelity tier.
func (d *Degrader) Tier() render.Tier {
	if d.hasOverride {
		return d.override
	}
	return d.tier
}

// SetTierOverride pins the tier from an external gate (the conformal
// frame-time risk gate plugs in here). Recorded through the evidence sink.
func (d *Degrader) SetTierOverride(tier render.Tier, reason string) {
	d.override = tier
	d.hasOverride = true
	if d.sink != nil {
		d.sink.Record(evidence.KindTierChange, evidence.Fields{
			"tier":   tier.String(),
			"source": "override",
			"reason": reason,
		})
	}
}

// ClearTierOverride returns control to the PI loop.
func (d *Degrader) ClearTierOverride() {
	d.hasOverride = false
}

// ObserveFrame folds one frame's duration into the controller and returns
// the tier to render the next frame at.
func (d *Degrader) ObserveFrame(actual time.Duration) render.Tier {
	e := float64(d.target-actual) / float64(time.Millisecond)
	d.integral += e
	if d.integral > integralClamp {
		d.integral = integralClamp
	}
	if d.integral < -integralClamp {
		d.integral = -integralClamp
	}

	u := d.kp*e + d.ki*d.integral

	proposed := tierForControl(u, float64(d.target)/float64(time.Millisecond))

	if proposed == d.tier {
		d.pendingCount = 0
	} else if proposed == d.pendingTier {
		d.pendingCount++
		if d.pendingCount >= hysteresisFrames {
			from := d.tier
			d.tier = proposed
			d.pendingCount = 0
			d.integral = 0
			if d.sink != nil {
				d.sink.Record(evidence.KindTierChange, evidence.Fields{
					"from":    from.String(),
					"tier":    d.tier.String(),
					"source":  "pi_controller",
					"control": u,
				})
			}
		}
	} else {
		d.pendingTier = proposed
		d.pendingCount = 1
	}

	return d.Tier()
}

// tierForControl maps the control signal to a tier. The control is in ms of
// headroom: zero or positive means on budget; each further half-target of
// deficit sheds one level of fidelity.
func tierForControl(u, targetMS float64) render.Tier {
	step := targetMS / 2
	switch {
	case u >= 0:
		return render.TierFull
	case u >= -step:
		return render.TierSimpleBorders
	case u >= -2*step:
		return render.TierNoColors
	}
	return render.TierTextOnly
}
