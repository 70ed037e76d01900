package gocv

import "errors"

// ErrUnavailable is returned when the binary was built without OpenCV.
var ErrUnavailable = errors.New("opencv decoder not available: build with '-tags=gocv' and install OpenCV/GoCV")
