package util

import (
	"math"
	"strconv"
	"time"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatSize renders a byte count with base-1024 units and at most two
// decimals, dropping trailing zeros: 1536 -> "1.5 KB".
func FormatSize(size int64) string {
	if size <= 0 {
		return "0 Bytes"
	}

	const unit = 1024
	exp := int(math.Floor(math.Log(float64(size)) / math.Log(unit)))
	if exp >= len(sizeUnits) {
		exp = len(sizeUnits) - 1
	}

	value := float64(size) / math.Pow(unit, float64(exp))
	value = math.Round(value*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[exp]
}

// FormatAge renders how long ago t was, in whole seconds or minutes.
func FormatAge(now, t time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return strconv.Itoa(int(d/time.Second)) + "s ago"
	}
	return strconv.Itoa(int(d/time.Minute)) + "m ago"
}
