package bench

import (
	"fmt"
	"strings"
	"time"
)

type interval struct {
	suffix byte
	secs   int64
}

// intervals mirrors the reference implementation's time2ival table: the
// largest unit that divides the remaining duration is peeled off first,
// down to whole seconds, which are always printed with a two-digit
// fractional remainder.
var intervals = []interval{
	{'w', 7 * 24 * 3600},
	{'d', 24 * 3600},
	{'h', 3600},
	{'m', 60},
}

// FormatInterval renders a duration the way the reference harness does:
// a sequence of "<N><unit>" terms for whichever of week/day/hour/minute
// divide it, followed by "<seconds>.<hundredths>s".
func FormatInterval(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int64(d / time.Second)
	hundredths := int64(d%time.Second) / int64(10*time.Millisecond)

	var sb strings.Builder
	for _, iv := range intervals {
		if sec >= iv.secs {
			n := sec / iv.secs
			fmt.Fprintf(&sb, "%d%c", n, iv.suffix)
			sec -= n * iv.secs
		}
	}
	fmt.Fprintf(&sb, "%d.%02ds", sec, hundredths)
	return sb.String()
}
