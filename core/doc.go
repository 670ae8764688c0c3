/*
Package haar is a pure Go implementation of the Viola-Jones object detector
working with the Haar-like feature cascades trained by the OpenCV haartraining
tool. Both stump and tree based cascades are supported, including the 45°
rotated (tilted) features.

# Object detection API example

First load and parse the XML cascade, then convert the image to grayscale and
finally run the detector, which returns the merged detections.

	cascade, err := haar.LoadCascade("/path/to/haarcascade_frontalface_alt.xml")
	if err != nil {
		log.Fatalf("Error reading the cascade file: %v", err)
	}

	src, err := haar.GetImage("/path/to/image")
	if err != nil {
		log.Fatalf("Cannot open the image file: %v", err)
	}

	cParams := haar.CascadeParams{
		MinSize:      haar.Size{Width: 20, Height: 20},
		ScaleFactor:  1.1,
		MinNeighbors: 3,
		ImageParams:  haar.NewImageParams(src),
	}

	det, err := haar.NewDetector(cascade)
	if err != nil {
		log.Fatalf("Invalid cascade: %v", err)
	}
	dets, err := det.RunCascade(cParams)
	if err != nil {
		log.Fatalf("Detection failed: %v", err)
	}

Each detection holds the bounding rectangle and the number of raw hits
(neighbors) merged into it.

For video streams a Session keeps the last detected object and narrows the
search of the following frame to a padded region around it:

	sess := haar.NewSession(haar.DefaultSessionConfig())
	for frame := range frames {
		cParams.ImageParams = haar.NewImageParams(frame)
		obj, err := det.DetectSingle(sess, cParams)
		...
	}
*/
package haar
