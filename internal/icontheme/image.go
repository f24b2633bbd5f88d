package icontheme

import (
	"image"
	"os"

	_ "image/png"
)

// Decode decodes an icon file into an image. Only formats with a
// registered stdlib decoder (PNG) decode; SVG and XPM hits still resolve
// as paths, so callers treat a decode failure as "path only", not as a
// missing icon.
func Decode(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	return img, nil
}
