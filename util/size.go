package util

import "fmt"

var sizeUnits = []string{"B", "KiB", "MiB", "GiB", "TiB"}

// HumanSize formats a byte count with binary units, e.g. "1.50 KiB".
func HumanSize(n int64) string {
	size := float64(n)
	i := 0
	for size >= 1024 && i < len(sizeUnits)-1 {
		size /= 1024
		i++
	}
	return fmt.Sprintf("%.2f %s", size, sizeUnits[i])
}

// SavedPercent is the share of before that was saved, in percent.
func SavedPercent(before, after int64) float64 {
	if before == 0 {
		return 0
	}
	return float64(before-after) / float64(before) * 100
}
