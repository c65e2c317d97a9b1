package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuery_Validate_DegenerateBBox(t *testing.T) {
	q := Query{MinLon: -1.0, MinLat: 50.0, MaxLon: -1.0, MaxLat: 50.0, LookbackMonths: 6}
	err := q.Validate()
	assert.Error(t, err)
}

func TestQuery_Validate_LookbackOutOfRange(t *testing.T) {
	q := Query{MinLon: -1.5, MinLat: 50.0, MaxLon: -1.0, MaxLat: 51.0, LookbackMonths: 25}
	err := q.Validate()
	assert.Error(t, err)
}

func TestQuery_Validate_UnknownTimeOfDay(t *testing.T) {
	q := Query{MinLon: -1.5, MinLat: 50.0, MaxLon: -1.0, MaxLat: 51.0, LookbackMonths: 6, TimeOfDay: "midnight"}
	err := q.Validate()
	assert.Error(t, err)
}

func TestQuery_Validate_OK(t *testing.T) {
	q := Query{MinLon: -1.5, MinLat: 50.0, MaxLon: -1.0, MaxLat: 51.0, LookbackMonths: 6, TimeOfDay: "night"}
	assert.NoError(t, q.Validate())
}

