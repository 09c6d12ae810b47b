package sim

import "math"

// Intelligent Driver Model parameters shared by every vehicle.
const (
	IDMAccel      = 1.0 // a: maximum acceleration (m/s^2)
	IDMDecel      = 1.5 // b: comfortable deceleration (m/s^2)
	IDMHeadway    = 1.0 // T: desired time headway (s)
	IDMMinGap     = 2.0 // s0: jam distance (m)
	IDMDelta      = 4.0 // acceleration exponent
	VehicleLength = 5.0
	// MaxDecel bounds braking when deciding whether a yellow light can be
	// stopped for.
	MaxDecel = 4.5
)

// Vehicle is one simulated car. Pos is the front bumper's distance from the
// start of Edge.
type Vehicle struct {
	ID       string
	Type     string
	RL       bool
	Edge     string
	Next     string // successor chosen on entering Edge; "" leaves the network
	Lane     int
	Pos      float64
	Speed    float64
	MaxSpeed float64
	Noise    float64
	Observed bool
}

// IDMAcceleration returns the IDM acceleration for a vehicle driving at v with
// desired speed v0, bumper gap s to its leader and approach rate dv
// (own speed minus leader speed). An infinite gap means a free road.
func IDMAcceleration(v, v0, s, dv float64) float64 {
	if v0 <= 0 {
		return -IDMDecel
	}
	free := 1 - math.Pow(v/v0, IDMDelta)
	if math.IsInf(s, 1) {
		return IDMAccel * free
	}
	sStar := IDMMinGap + math.Max(0, v*IDMHeadway+v*dv/(2*math.Sqrt(IDMAccel*IDMDecel)))
	s = math.Max(s, 1e-3)
	return IDMAccel * (free - (sStar/s)*(sStar/s))
}
