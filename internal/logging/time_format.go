package logging

import "time"

func formatTimestamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}
