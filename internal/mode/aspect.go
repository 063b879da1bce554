package mode

import "fmt"

type AspectRatio string

const (
	Square    AspectRatio = "1:1"
	Landscape AspectRatio = "16:9"
	Portrait  AspectRatio = "9:16"
	Classic   AspectRatio = "4:3"
	Tall      AspectRatio = "3:4"
)

var (
	imageRatios = []AspectRatio{Square, Landscape, Portrait, Classic, Tall}
	videoRatios = []AspectRatio{Landscape, Portrait}
)

func ParseAspect(s string) (AspectRatio, error) {
	for _, r := range imageRatios {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unsupported aspect ratio %q", s)
}

// VideoAspect narrows any ratio to the two the video model accepts.
func VideoAspect(r AspectRatio) AspectRatio {
	if r == Portrait {
		return Portrait
	}
	return Landscape
}
