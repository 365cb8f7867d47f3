package diag

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/oyin-bo/mavity"
)

// Summary condenses a snapshot into the numbers worth logging every few
// hundred ticks: how spread out the layout is, how hot it still runs, and
// how well the slot order tracks the SFC keys.
type Summary struct {
	RadiusMean   float64
	RadiusStdDev float64
	Kinetic      float64
	// KeyInversions counts adjacent slot pairs whose SFC keys descend; zero
	// would mean a globally sorted array, which the chunked sort only
	// approaches.
	KeyInversions int
}

// Summarize computes layout statistics for a snapshot.
func Summarize(s *mavity.Snapshot) Summary {
	n := s.N()
	radii := make([]float64, n)
	var kinetic float64
	for i := 0; i < n; i++ {
		p := s.Pos[i]
		radii[i] = math.Sqrt(float64(p.X())*float64(p.X()) +
			float64(p.Y())*float64(p.Y()) +
			float64(p.Z())*float64(p.Z()))
		v := s.Vel[i]
		v2 := float64(v.X())*float64(v.X()) +
			float64(v.Y())*float64(v.Y()) +
			float64(v.Z())*float64(v.Z())
		kinetic += 0.5 * float64(s.Meta[i].Mass) * v2
	}

	mean, std := stat.MeanStdDev(radii, nil)
	if n < 2 || math.IsNaN(std) {
		std = 0
	}

	inversions := 0
	for i := 1; i < n; i++ {
		if s.Pos[i].W() < s.Pos[i-1].W() {
			inversions++
		}
	}

	return Summary{
		RadiusMean:    mean,
		RadiusStdDev:  std,
		Kinetic:       kinetic,
		KeyInversions: inversions,
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("radius %.4g±%.4g kinetic %.4g inversions %d",
		s.RadiusMean, s.RadiusStdDev, s.Kinetic, s.KeyInversions)
}
