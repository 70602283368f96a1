package netexp

// channel.go decides whether a frame sent by one node is heard by another.
// Under CSMA the received power is computed from a path loss model and
// compared against the receiver sensitivity; under TDMA reception is a pure
// range test.  None of this models interference or capture.

import (
	"fmt"
	"github.com/iti/rngstream"
	"math"
)

// speed of light, meters/sec
const lightSpeed = 299792458.0

// LossModel selects a path loss formula
type LossModel int

const (
	FriisLoss        LossModel = 1
	ItuR1411LosLoss  LossModel = 2
	TwoRayGroundLoss LossModel = 3
	LogDistanceLoss  LossModel = 4
)

var lossModelNames = map[LossModel]string{
	FriisLoss:        "Friis",
	ItuR1411LosLoss:  "ItuR1411Los",
	TwoRayGroundLoss: "TwoRayGround",
	LogDistanceLoss:  "LogDistance",
}

func (lm LossModel) String() string {
	name, present := lossModelNames[lm]
	if !present {
		return fmt.Sprintf("LossModel(%d)", int(lm))
	}
	return name
}

const (
	defaultTxPower       = 16.0206 // dBm
	defaultRxSensitivity = -101.0  // dBm

	logDistRefLoss  = 46.6777 // dB at 1m
	logDistExponent = 3.0
)

// Channel holds the propagation parameters of one run
type Channel struct {
	MacMode       MacMode
	Loss          LossModel
	Fading        int     // 0 none, 1 Nakagami with m=1
	Frequency     float64 // Hz
	TxPower       float64 // dBm
	RxSensitivity float64 // dBm
	MaxRange      float64 // meters, used under TDMA
	Rngstrm       *rngstream.RngStream
}

// CreateChannel is a constructor
func CreateChannel(cfg *ExperimentConfig) *Channel {
	ch := new(Channel)
	ch.MacMode = MacMode(cfg.MacMode)
	ch.Loss = LossModel(cfg.LossModel)
	ch.Fading = cfg.Fading
	ch.Frequency = cfg.Frequency
	ch.TxPower = defaultTxPower
	ch.RxSensitivity = defaultRxSensitivity
	ch.MaxRange = cfg.TxRange
	ch.Rngstrm = rngstream.New("channel")
	return ch
}

// PropagationDelay is the time for a signal to cover distance d
func (ch *Channel) PropagationDelay(d float64) float64 {
	return d / lightSpeed
}

// Receivable reports whether a frame from src is heard at dst, d meters away
func (ch *Channel) Receivable(src, dst *Node, d float64) bool {
	if ch.MacMode == TDMA {
		return d <= ch.MaxRange
	}
	return ch.RxPower(src, dst, d) >= ch.RxSensitivity
}

// InRange is Receivable with fading left out, so no random draw is consumed
func (ch *Channel) InRange(src, dst *Node, d float64) bool {
	if ch.MacMode == TDMA {
		return d <= ch.MaxRange
	}
	return ch.TxPower+src.AntennaGain-ch.PathLoss(d, src.AntennaHeight, dst.AntennaHeight) >= ch.RxSensitivity
}

// RxPower is the received power in dBm of a frame from src at dst
func (ch *Channel) RxPower(src, dst *Node, d float64) float64 {
	rx := ch.TxPower + src.AntennaGain - ch.PathLoss(d, src.AntennaHeight, dst.AntennaHeight)
	if ch.Fading == 1 {
		rx += ch.fadingGain()
	}
	return rx
}

// PathLoss returns the loss in dB over distance d for antennas at heights ht and hr
func (ch *Channel) PathLoss(d, ht, hr float64) float64 {
	// all the formulas are unbounded near zero distance
	if d < 1.0 {
		d = 1.0
	}
	lambda := lightSpeed / ch.Frequency
	switch ch.Loss {
	case FriisLoss:
		return friisLoss(d, lambda)
	case LogDistanceLoss:
		return logDistRefLoss + 10.0*logDistExponent*math.Log10(d)
	case TwoRayGroundLoss:
		crossover := 4.0 * math.Pi * ht * hr / lambda
		if d <= crossover {
			return friisLoss(d, lambda)
		}
		return 40.0*math.Log10(d) - 20.0*math.Log10(ht) - 20.0*math.Log10(hr)
	case ItuR1411LosLoss:
		return ituR1411Loss(d, lambda, ht, hr)
	}
	panic(fmt.Errorf("unrecognized loss model %d", int(ch.Loss)))
}

func friisLoss(d, lambda float64) float64 {
	return 20.0 * math.Log10(4.0*math.Pi*d/lambda)
}

// ituR1411Loss is the line-of-sight street canyon model of ITU-R P.1411,
// taking the mean of the lower and upper bounds
func ituR1411Loss(d, lambda, hb, hm float64) float64 {
	rbp := 4.0 * hb * hm / lambda
	lbp := math.Abs(20.0 * math.Log10(lambda*lambda/(8.0*math.Pi*hb*hm)))
	var lower, upper float64
	if d <= rbp {
		lower = lbp + 20.0*math.Log10(d/rbp)
		upper = lbp + 20.0 + 25.0*math.Log10(d/rbp)
	} else {
		lower = lbp + 40.0*math.Log10(d/rbp)
		upper = lbp + 20.0 + 40.0*math.Log10(d/rbp)
	}
	return (lower + upper) / 2.0
}

// fadingGain draws a Rayleigh (Nakagami m=1) power gain, in dB
func (ch *Channel) fadingGain() float64 {
	u01 := ch.Rngstrm.RandU01()
	if u01 <= 0.0 {
		u01 = math.SmallestNonzeroFloat64
	}
	return 10.0 * math.Log10(-math.Log(u01))
}
