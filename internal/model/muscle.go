package model

import (
	"fmt"
	"math"
)

// MuscleType is the closed set of supported muscle models.
type MuscleType int

const (
	HillType MuscleType = iota
	HillThelen
	HillSimple
	IdealizedActuator
)

func (t MuscleType) String() string {
	switch t {
	case HillType:
		return "hill"
	case HillThelen:
		return "hill_thelen"
	case HillSimple:
		return "hill_simple"
	case IdealizedActuator:
		return "idealized_actuator"
	default:
		return fmt.Sprintf("muscle_type(%d)", int(t))
	}
}

var muscleTypes = map[string]MuscleType{
	"":                   HillType,
	"hill":               HillType,
	"hill_thelen":        HillThelen,
	"hill_simple":        HillSimple,
	"idealized_actuator": IdealizedActuator,
}

// forceModel is the per-type force law, selected once at load.
type forceModel interface {
	passive(normLength float64) float64
	active(normLength, activation float64) float64
}

// Muscle is a path geometry with a force model attached.
type Muscle struct {
	PathGeometry
	Type          MuscleType
	OptimalLength float64
	MaximalForce  float64

	dynamics forceModel
}

func newMuscle(path PathGeometry, typeName string, optimalLength, maximalForce float64) (Muscle, error) {
	t, ok := muscleTypes[typeName]
	if !ok {
		return Muscle{}, fmt.Errorf("%w: %q on muscle %s", ErrUnknownMuscleType, typeName, path.Name)
	}
	if optimalLength == 0 {
		optimalLength = 0.1
	}
	mu := Muscle{
		PathGeometry:  path,
		Type:          t,
		OptimalLength: optimalLength,
		MaximalForce:  maximalForce,
	}
	switch t {
	case HillThelen:
		mu.dynamics = hillModel{kPE: 5, activeWidth: 0.25}
	case HillSimple:
		mu.dynamics = hillModel{activeWidth: 0.45}
	case IdealizedActuator:
		mu.dynamics = idealizedActuator{}
	default:
		mu.dynamics = hillModel{kPE: 4, activeWidth: 0.45}
	}
	return mu, nil
}

// PassiveForceCoefficient returns the normalized passive force at the
// given fiber length.
func (mu *Muscle) PassiveForceCoefficient(length float64) float64 {
	return mu.dynamics.passive(length / mu.OptimalLength)
}

// ActiveForceCoefficient returns the normalized active force at the given
// fiber length and activation.
func (mu *Muscle) ActiveForceCoefficient(length float64, activation float64) float64 {
	return mu.dynamics.active(length/mu.OptimalLength, activation)
}

// hillModel is an exponential passive curve with a Gaussian active
// force-length relation. kPE of zero disables the passive element.
type hillModel struct {
	kPE         float64
	activeWidth float64
}

func (h hillModel) passive(x float64) float64 {
	if h.kPE == 0 || x <= 1 {
		return 0
	}
	const e0 = 0.6
	return (math.Exp(h.kPE*(x-1)/e0) - 1) / (math.Exp(h.kPE) - 1)
}

func (h hillModel) active(x, activation float64) float64 {
	d := x - 1
	return activation * math.Exp(-d*d/h.activeWidth)
}

// idealizedActuator delivers its activation regardless of length.
type idealizedActuator struct{}

func (idealizedActuator) passive(float64) float64 { return 0 }

func (idealizedActuator) active(_, activation float64) float64 { return activation }

// MuscleLength returns muscle i's path length at the current pose.
func (m *Model) MuscleLength(i int) float64 {
	pts := m.pathPoints(m.Muscles[i].PathGeometry)
	var length float64
	for j := 1; j < len(pts); j++ {
		dx := pts[j].X - pts[j-1].X
		dy := pts[j].Y - pts[j-1].Y
		dz := pts[j].Z - pts[j-1].Z
		length += math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return length
}

// MuscleForce returns muscle i's tension at the current pose: the maximal
// isometric force scaled by the active and passive coefficients.
func (m *Model) MuscleForce(i int, activation float64) float64 {
	mu := &m.Muscles[i]
	length := m.MuscleLength(i)
	return mu.MaximalForce * (mu.ActiveForceCoefficient(length, activation) + mu.PassiveForceCoefficient(length))
}

// MuscleMomentArm returns muscle i's moment arm about every coordinate at
// pose q, as the negated length gradient estimated by central differences.
// The model is re-posed to q before returning.
func (m *Model) MuscleMomentArm(i int, q []float64) []float64 {
	const h = 1e-6
	out := make([]float64, m.nQ)
	work := append([]float64(nil), q...)
	for d := 0; d < m.nQ; d++ {
		work[d] = q[d] + h
		m.UpdateKinematics(work)
		plus := m.MuscleLength(i)

		work[d] = q[d] - h
		m.UpdateKinematics(work)
		minus := m.MuscleLength(i)

		work[d] = q[d]
		out[d] = -(plus - minus) / (2 * h)
	}
	m.UpdateKinematics(q)
	return out
}
