package routes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseCoord(t *testing.T) {
	assert.Equal(t, 38.7223, parseCoord("38.7223"))
	assert.Equal(t, -9.1393, parseCoord(" -9.1393 "))
	assert.Equal(t, 0.0, parseCoord(""))
	assert.Equal(t, 0.0, parseCoord("not-a-number"))
}

func TestFormatDay(t *testing.T) {
	assert.Equal(t, "", formatDay(time.Time{}))

	loc := time.FixedZone("WET+1", 3600)
	assert.Equal(t, "2026-04-30", formatDay(time.Date(2026, 5, 1, 0, 30, 0, 0, loc)))
	assert.Equal(t, "2026-05-01", formatDay(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)))
}
