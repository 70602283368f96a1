package netexp

// mobility.go gives nodes positions that change in simulated time.  Motion is
// piecewise linear: a model holds its current leg (start point, start time,
// velocity) and an event at the end of each leg picks the next one, at which
// point the course-change callbacks fire

import (
	"fmt"
	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"github.com/iti/rngstream"
	"io"
	"math"
)

// MobilityMode selects how the sensor nodes move
type MobilityMode int

const (
	Stationary     MobilityMode = 0
	RandomWalk     MobilityMode = 1
	RandomWaypoint MobilityMode = 2
)

func (mm MobilityMode) String() string {
	switch mm {
	case Stationary:
		return "Stationary"
	case RandomWalk:
		return "RandomWalk2d"
	case RandomWaypoint:
		return "RandomWaypoint"
	}
	return fmt.Sprintf("MobilityMode(%d)", int(mm))
}

// MobilityModel reports position and velocity at a simulated time
type MobilityModel interface {
	Position(now float64) Vector
	Velocity(now float64) Vector
}

// CourseChangeFunc is called each time a node's velocity changes
type CourseChangeFunc func(now float64, node *Node, pos, vel Vector)

// layout constants of the placement grids
const (
	baseGridMinX   = 50.0
	baseGridMinY   = 0.0
	baseGridDeltaX = 1000.0
	nodeGridMinX   = 50.0
	nodeGridDeltaX = 100.0
	walkDistance   = 10.0 // meters covered by one random walk leg
)

// Box bounds the area random motion is confined to
type Box struct {
	MinX, MaxX, MinY, MaxY float64
}

// Contains reports whether the point lies inside the box, boundary included
func (box Box) Contains(p Vector) bool {
	return p.X >= box.MinX && p.X <= box.MaxX && p.Y >= box.MinY && p.Y <= box.MaxY
}

// randomPoint draws a point uniformly from the box
func (box Box) randomPoint(rng *rngstream.RngStream) Vector {
	return Vector{X: box.MinX + (box.MaxX-box.MinX)*rng.RandU01(),
		Y: box.MinY + (box.MaxY-box.MinY)*rng.RandU01()}
}

// DefaultMobilityBox is the area the sensor nodes roam in
var DefaultMobilityBox = Box{MinX: 0.0, MaxX: 1500.0, MinY: 10.0, MaxY: 1500.0}

// BaseGridPosition is where the idx-th base station is placed
func BaseGridPosition(idx int) Vector {
	return Vector{X: baseGridMinX + baseGridDeltaX*float64(idx), Y: baseGridMinY}
}

// NodeGridPosition is where the idx-th stationary sensor node is placed
func NodeGridPosition(idx int, yPos float64) Vector {
	return Vector{X: nodeGridMinX + nodeGridDeltaX*float64(idx), Y: yPos}
}

// ConstantPosition never moves
type ConstantPosition struct {
	Pos Vector
}

func (cp *ConstantPosition) Position(now float64) Vector {
	return cp.Pos
}

func (cp *ConstantPosition) Velocity(now float64) Vector {
	return Vector{}
}

// LegMobility implements both random walk and random waypoint motion
type LegMobility struct {
	Mode     MobilityMode
	Bounds   Box
	MaxSpeed float64 // leg speed is drawn from U(0, MaxSpeed]
	Pause    float64 // waypoint pause between legs

	rng      *rngstream.RngStream
	node     *Node
	legStart float64
	startPos Vector
	vel      Vector
	pausing  bool // waypoint only, the current leg is a pause
	onChange []CourseChangeFunc
}

// CreateLegMobility is a constructor, the initial position is drawn from the bounds
func CreateLegMobility(mode MobilityMode, bounds Box, maxSpeed, pause float64, rng *rngstream.RngStream) *LegMobility {
	lm := new(LegMobility)
	lm.Mode = mode
	lm.Bounds = bounds
	lm.MaxSpeed = maxSpeed
	lm.Pause = pause
	lm.rng = rng
	lm.startPos = bounds.randomPoint(rng)
	lm.onChange = make([]CourseChangeFunc, 0)
	return lm
}

func (lm *LegMobility) Position(now float64) Vector {
	dt := now - lm.legStart
	return Vector{X: lm.startPos.X + lm.vel.X*dt, Y: lm.startPos.Y + lm.vel.Y*dt}
}

func (lm *LegMobility) Velocity(now float64) Vector {
	return lm.vel
}

// OnCourseChange registers a callback fired at every leg change
func (lm *LegMobility) OnCourseChange(cb CourseChangeFunc) {
	lm.onChange = append(lm.onChange, cb)
}

// Start binds the model to its node and schedules the first leg.  Legs ending
// after until are not scheduled
func (lm *LegMobility) Start(evtMgr *evtm.EventManager, node *Node, until float64) {
	lm.node = node
	if !(lm.MaxSpeed > 0.0) {
		return
	}
	evtMgr.Schedule(lm, until, legEnds, vrtime.SecondsToTime(0.0))
}

// legEnds closes the current leg and opens the next one
func legEnds(evtMgr *evtm.EventManager, context any, data any) any {
	lm := context.(*LegMobility)
	until := data.(float64)
	now := evtMgr.CurrentSeconds()

	lm.startPos = lm.Position(now)
	lm.legStart = now

	var duration float64
	if lm.Mode == RandomWaypoint {
		duration = lm.nextWaypointLeg()
	} else {
		duration = lm.nextWalkLeg()
	}

	for _, cb := range lm.onChange {
		cb(now, lm.node, lm.startPos, lm.vel)
	}

	if now+duration < until {
		evtMgr.Schedule(lm, until, legEnds, vrtime.SecondsToTime(duration))
	}
	return nil
}

// drawSpeed returns a speed from U(0, MaxSpeed], never exactly zero
func (lm *LegMobility) drawSpeed() float64 {
	speed := lm.MaxSpeed * lm.rng.RandU01()
	if speed < 1e-3*lm.MaxSpeed {
		speed = 1e-3 * lm.MaxSpeed
	}
	return speed
}

// nextWaypointLeg alternates travel to a random target with a pause, and
// returns the duration of the new leg
func (lm *LegMobility) nextWaypointLeg() float64 {
	if !lm.pausing && lm.Pause > 0.0 && lm.vel != (Vector{}) {
		lm.pausing = true
		lm.vel = Vector{}
		return lm.Pause
	}
	lm.pausing = false

	target := lm.Bounds.randomPoint(lm.rng)
	dist := Distance(lm.startPos, target)
	if dist == 0.0 {
		lm.vel = Vector{}
		return lm.Pause
	}
	speed := lm.drawSpeed()
	lm.vel = Vector{X: (target.X - lm.startPos.X) / dist * speed, Y: (target.Y - lm.startPos.Y) / dist * speed}
	return dist / speed
}

// nextWalkLeg moves walkDistance in a direction drawn uniformly.  A leg that
// would leave the bounds is cut short at the boundary and the following leg
// heads off in the reflected direction
func (lm *LegMobility) nextWalkLeg() float64 {
	var dirX, dirY float64
	reflected := false
	if lm.vel != (Vector{}) {
		// a leg that stopped on the boundary is reflected rather than redrawn
		speed := math.Hypot(lm.vel.X, lm.vel.Y)
		dirX, dirY = lm.vel.X/speed, lm.vel.Y/speed
		p := lm.startPos
		if (p.X <= lm.Bounds.MinX && dirX < 0) || (p.X >= lm.Bounds.MaxX && dirX > 0) {
			dirX = -dirX
			reflected = true
		}
		if (p.Y <= lm.Bounds.MinY && dirY < 0) || (p.Y >= lm.Bounds.MaxY && dirY > 0) {
			dirY = -dirY
			reflected = true
		}
	}
	if !reflected {
		theta := 2.0 * math.Pi * lm.rng.RandU01()
		dirX, dirY = math.Cos(theta), math.Sin(theta)
	}

	speed := lm.drawSpeed()
	duration := walkDistance / speed

	// time to the boundary along each axis
	limit := func(pos, dir, lo, hi float64) float64 {
		switch {
		case dir > 0:
			return (hi - pos) / (dir * speed)
		case dir < 0:
			return (lo - pos) / (dir * speed)
		}
		return math.Inf(1)
	}
	if t := limit(lm.startPos.X, dirX, lm.Bounds.MinX, lm.Bounds.MaxX); t < duration {
		duration = t
	}
	if t := limit(lm.startPos.Y, dirY, lm.Bounds.MinY, lm.Bounds.MaxY); t < duration {
		duration = t
	}
	if duration < 0.0 {
		duration = 0.0
	}
	lm.vel = Vector{X: dirX * speed, Y: dirY * speed}
	return duration
}

// MobilityLog writes one line per course change.  It is the context the
// course-change callback closes over
type MobilityLog struct {
	w   io.Writer
	err error // first write failure, later writes are skipped
}

// CreateMobilityLog is a constructor
func CreateMobilityLog(w io.Writer) *MobilityLog {
	ml := new(MobilityLog)
	ml.w = w
	return ml
}

// CourseChange is a CourseChangeFunc
func (ml *MobilityLog) CourseChange(now float64, node *Node, pos, vel Vector) {
	if ml.err != nil {
		return
	}
	_, ml.err = fmt.Fprintf(ml.w, "%gs POS: x=%g, y=%g; VEL: x=%g, y=%g\n", now, pos.X, pos.Y, vel.X, vel.Y)
}

// Err returns the first write error, if any
func (ml *MobilityLog) Err() error {
	return ml.err
}
