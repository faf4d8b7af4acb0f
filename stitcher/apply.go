package stitcher

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/ncstitch/intersection"
)

var ErrFaceIndex = errors.New("part references a face that does not exist")

// Apply cuts the parts out of the face geometry. Each part's area vector is removed
// from its face and the centre moved to that of the remainder, measuring areas
// along the face normal. A face left with no positive area keeps its centre for the
// stabiliser to deal with. Nothing is changed unless every part is valid.
func Apply(parts []intersection.Part, sf, cf []r3.Vec) error {
	if len(sf) != len(cf) {
		return fmt.Errorf("%d face area vectors but %d face centres", len(sf), len(cf))
	}
	for i, p := range parts {
		if p.Face < 0 || p.Face >= len(sf) {
			return fmt.Errorf("%w: part %d on %s side names face %d of %d",
				ErrFaceIndex, i, p.Side, p.Face, len(sf))
		}
	}
	for _, p := range parts {
		var (
			f    = p.Face
			s0   = sf[f]
			mag0 = r3.Norm(s0)
		)
		if mag0 == 0 {
			continue
		}
		var (
			n       = r3.Scale(1./mag0, s0)
			magPart = r3.Dot(p.Area, n)
			magRem  = mag0 - magPart
		)
		sf[f] = r3.Sub(s0, p.Area)
		if magRem > 0 {
			cf[f] = r3.Scale(1./magRem, r3.Sub(r3.Scale(mag0, cf[f]), r3.Scale(magPart, p.Centre)))
		}
	}
	return nil
}
