// Package camera enumerates video4linux capture devices and owns the
// lifecycle of the single active camera stream. Frames are pulled from an
// external grabber process in raw grayscale so the decoder never touches
// device ioctls directly; the grabber process holding the device is what
// makes stream ownership exclusive.
package camera
