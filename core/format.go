package core

import "fmt"

// FormatBytes renders n in binary units: "512 B", "1.50 KB", "24.00 MB".
func FormatBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", max(n, 0))
	}
	units := []string{"KB", "MB", "GB", "TB"}
	v := float64(n) / 1024
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%.2f %s", v, units[i])
}

// FormatMegapixels renders w×h as "24.2 MP".
func FormatMegapixels(w, h int) string {
	return fmt.Sprintf("%.1f MP", float64(w)*float64(h)/1e6)
}
