package fraud

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"resumeguard/internal/errors"
)

type rgb struct {
	r, g, b float64
}

// parseHexColor accepts "#rgb", "#rrggbb" and the same without '#'.
// An empty string means the color is unknown and is not an error.
func parseHexColor(s string) (rgb, bool, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if hex == "" {
		return rgb{}, false, nil
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return rgb{}, false, malformedColor(s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return rgb{}, false, malformedColor(s)
	}
	return rgb{
		r: float64(v >> 16 & 0xff),
		g: float64(v >> 8 & 0xff),
		b: float64(v & 0xff),
	}, true, nil
}

func malformedColor(s string) error {
	return errors.NewDetectionError(errors.ErrCodeMalformedColor,
		fmt.Sprintf("unparsable color %q", s), nil)
}

// luminance is the perceived brightness in [0,1]
func (c rgb) luminance() float64 {
	return (0.299*c.r + 0.587*c.g + 0.114*c.b) / 255
}

func (c rgb) distance(o rgb) float64 {
	return math.Sqrt((c.r-o.r)*(c.r-o.r) + (c.g-o.g)*(c.g-o.g) + (c.b-o.b)*(c.b-o.b))
}
