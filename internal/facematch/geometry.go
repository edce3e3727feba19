package facematch

import "image"

// ClampBBox converts a pixel bounding box [x1, y1, x2, y2] into a rectangle
// clamped to bounds. The second result is false when the box is malformed or
// lies entirely outside the image.
func ClampBBox(bbox []float64, bounds image.Rectangle) (image.Rectangle, bool) {
	if len(bbox) != 4 || bbox[2] <= bbox[0] || bbox[3] <= bbox[1] {
		return image.Rectangle{}, false
	}

	r := image.Rect(int(bbox[0]), int(bbox[1]), int(bbox[2]+0.5), int(bbox[3]+0.5)).Intersect(bounds)
	if r.Empty() {
		return image.Rectangle{}, false
	}
	return r, true
}

// ConvertPixelBBoxToRelative converts pixel bbox to relative (0-1) coordinates.
// Input bbox is [x1, y1, x2, y2] in pixels, output is [x1, y1, x2, y2] in relative coords.
func ConvertPixelBBoxToRelative(bbox []float64, width, height int) []float64 {
	if len(bbox) != 4 || width <= 0 || height <= 0 {
		return bbox
	}
	return []float64{
		bbox[0] / float64(width),
		bbox[1] / float64(height),
		bbox[2] / float64(width),
		bbox[3] / float64(height),
	}
}

// RoundBBox rounds each coordinate to whole pixels for display.
func RoundBBox(bbox []float64) []int {
	if len(bbox) != 4 {
		return nil
	}
	out := make([]int, 4)
	for i, v := range bbox {
		if v < 0 {
			out[i] = int(v - 0.5)
		} else {
			out[i] = int(v + 0.5)
		}
	}
	return out
}
