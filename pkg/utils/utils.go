package utils

import (
	"fmt"
	"os"
)

// RemoveFileIgnoreNotExists removes a file, ignoring the error if it doesn't exist.
func RemoveFileIgnoreNotExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// FormatFileSize renders an estimated size for display, "Unknown size" when
// there is none.
func FormatFileSize(bytes *int64) string {
	if bytes == nil || *bytes < 0 {
		return "Unknown size"
	}

	const k = 1024
	units := []string{"B", "KB", "MB", "GB"}
	size := float64(*bytes)
	i := 0
	for size >= k && i < len(units)-1 {
		size /= k
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", *bytes)
	}
	return fmt.Sprintf("%.1f %s", size, units[i])
}
