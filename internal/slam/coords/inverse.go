package coords

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/slamview/internal/slam"
)

// RotationMatrix returns the pose rotation as a 3x3 dense matrix.
func RotationMatrix(pose slam.Pose) *mat.Dense {
	r := pose.Rotation
	return mat.NewDense(3, 3, []float64{
		r[0][0], r[0][1], r[0][2],
		r[1][0], r[1][1], r[1][2],
		r[2][0], r[2][1], r[2][2],
	})
}

// DisplayToSensor recovers LiDAR-frame coordinates from a display-frame point
// produced by SensorToDisplay with the same pose. The rotation is inverted
// generally rather than transposed, so poses that are not orthonormal still
// round-trip as long as they are non-singular.
func DisplayToSensor(d r3.Vector, pose slam.Pose) (r3.Vector, error) {
	w := DisplayToCamera(d)

	var inv mat.Dense
	if err := inv.Inverse(RotationMatrix(pose)); err != nil {
		return r3.Vector{}, fmt.Errorf("pose %d rotation not invertible: %w", pose.FrameIndex, err)
	}

	rel := mat.NewVecDense(3, []float64{
		w.X - pose.Position.X,
		w.Y - pose.Position.Y,
		w.Z - pose.Position.Z,
	})
	var c mat.VecDense
	c.MulVec(&inv, rel)

	return CameraToLidar(r3.Vector{X: c.AtVec(0), Y: c.AtVec(1), Z: c.AtVec(2)}), nil
}

// OrthonormalityError returns the Frobenius norm of RᵀR - I. It is zero for a
// proper rotation. The transform pipeline never rejects poses on this value;
// it exists for diagnostics.
func OrthonormalityError(pose slam.Pose) float64 {
	r := RotationMatrix(pose)
	var rtr mat.Dense
	rtr.Mul(r.T(), r)
	for i := 0; i < 3; i++ {
		rtr.Set(i, i, rtr.At(i, i)-1)
	}
	return mat.Norm(&rtr, 2)
}

// IsRotation reports whether the pose rotation is orthonormal with
// determinant +1 within tol.
func IsRotation(pose slam.Pose, tol float64) bool {
	if OrthonormalityError(pose) > tol {
		return false
	}
	return math.Abs(mat.Det(RotationMatrix(pose))-1) <= tol
}
