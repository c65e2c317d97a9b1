package cellwindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTargetMonths_MostRecentFirst(t *testing.T) {
	now := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	months := TargetMonths(now, 3)
	assert.Len(t, months, 3)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), months[0])
	assert.Equal(t, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), months[1])
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), months[2])
}

func TestTargetMonths_CrossesYearBoundary(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	months := TargetMonths(now, 2)
	assert.Equal(t, time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), months[1])
}
