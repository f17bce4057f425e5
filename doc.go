/*
go-beltvision turns a top-down video feed of objects travelling on a conveyor
belt into a persisted, per-object stream of real-world poses for a downstream
actuator such as a robotic arm.

A run calibrates a pixels-per-meter scale from a reference object of known
width, restricts detection to the belt band of each frame, keeps stable
identities for objects across frames, extrapolates their position to
compensate for actuator latency and upserts a snapshot of every object inside
the central viewing window.

See the calibrate, detect, tracker, predict and store subpackages for the
individual stages and the example subdirectory for a complete program.
*/
package beltvision
