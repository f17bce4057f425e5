/*
Package detect extracts candidate object observations from frames of a top
down view of the conveyor belt.

Each frame is reduced to a single channel, restricted to the belt region of
interest, binarized and searched for external boundaries.  Boundaries large
enough to not be noise are fitted with a minimum area rectangle which gives the
object's center and orientation, and the pixels inside the boundary are sampled
to classify the object's color.
*/
package detect
