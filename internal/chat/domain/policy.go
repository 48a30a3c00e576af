package domain

import "time"

// EditWindow edit / unsend allowed within 6.5 minutes of createdAt
const EditWindow = 390 * time.Second

// WithinWindow now - createdAt <= limit
func WithinWindow(createdAt, now time.Time, limit time.Duration) bool {
	return now.Sub(createdAt) <= limit
}
