package colormap

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetKnownMaps(t *testing.T) {
	for _, name := range []string{"fire", "viridis", "gray"} {
		m, err := Get(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, m.Name())
	}
}

func TestGetUnknownMap(t *testing.T) {
	_, err := Get("plasma")
	require.Error(t, err)
}

func TestEndpointsAndClamping(t *testing.T) {
	m, err := Get("gray")
	require.NoError(t, err)

	black := color.NRGBA{0, 0, 0, 255}
	white := color.NRGBA{255, 255, 255, 255}

	assert.Equal(t, black, m.At(0))
	assert.Equal(t, white, m.At(1))
	assert.Equal(t, black, m.At(-3), "below range clamps to first stop")
	assert.Equal(t, white, m.At(7), "above range clamps to last stop")
}

func TestInterpolationIsMonotone(t *testing.T) {
	m, err := Get("gray")
	require.NoError(t, err)

	prev := -1
	for i := 0; i <= 10; i++ {
		c := m.At(float64(i) / 10)
		assert.GreaterOrEqual(t, int(c.R), prev)
		prev = int(c.R)
	}
	assert.Equal(t, uint8(128), m.At(0.5).R, "midpoint of gray ramp")
}

func TestFireStartsDark(t *testing.T) {
	m, err := Get("fire")
	require.NoError(t, err)

	low := m.At(0.05)
	high := m.At(0.95)
	assert.Less(t, int(low.R)+int(low.G)+int(low.B), int(high.R)+int(high.G)+int(high.B))
}

func TestNamesSorted(t *testing.T) {
	assert.Equal(t, []string{"fire", "gray", "viridis"}, Names())
}
