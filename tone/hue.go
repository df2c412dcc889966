package tone

import "math"

// hueStage returns a stage function rotating hue by deg degrees around the
// luminance axis.  The rotation matrix is computed once per call.
func hueStage(deg float64) func(pixel, float64) pixel {
	m := hueMatrix(deg)
	return func(p pixel, _ float64) pixel {
		r := m[0]*p.r + m[1]*p.g + m[2]*p.b
		g := m[3]*p.r + m[4]*p.g + m[5]*p.b
		b := m[6]*p.r + m[7]*p.g + m[8]*p.b
		p.r, p.g, p.b = r, g, b
		return p
	}
}

// hueMatrix is the luminance-preserving hue rotation used by CSS/SVG
// feColorMatrix type="hueRotate".
func hueMatrix(deg float64) [9]float64 {
	const (
		lr = 0.213
		lg = 0.715
		lb = 0.072
	)
	rad := deg * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	return [9]float64{
		lr + c*(1-lr) - s*lr, lg - c*lg - s*lg, lb - c*lb + s*(1-lb),
		lr - c*lr + s*0.143, lg + c*(1-lg) + s*0.140, lb - c*lb - s*0.283,
		lr - c*lr - s*(1-lr), lg - c*lg + s*lg, lb + c*(1-lb) + s*lb,
	}
}
