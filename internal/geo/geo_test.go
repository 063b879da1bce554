package geo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoordinates(t *testing.T) {
	c, err := ParseCoordinates(" 51.5 , -0.12 ")
	require.NoError(t, err)
	assert.InDelta(t, 51.5, c.Latitude, 1e-9)
	assert.InDelta(t, -0.12, c.Longitude, 1e-9)

	for _, bad := range []string{"51.5", "a,b", "91,0", "0,181"} {
		_, err := ParseCoordinates(bad)
		assert.Error(t, err, bad)
	}
}

func TestStaticLocator(t *testing.T) {
	ctx := context.Background()

	s, err := NewStatic("1,2", false)
	require.NoError(t, err)
	c, err := s.Locate(ctx)
	require.NoError(t, err)
	assert.Equal(t, Coordinates{Latitude: 1, Longitude: 2}, c)

	s, err = NewStatic("1,2", true)
	require.NoError(t, err)
	_, err = s.Locate(ctx)
	var le *LocationError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, PermissionDenied, le.Code)

	s, err = NewStatic("", false)
	require.NoError(t, err)
	_, err = s.Locate(ctx)
	require.ErrorAs(t, err, &le)
	assert.Equal(t, PositionUnavailable, le.Code)

	_, err = NewStatic("nope", false)
	assert.Error(t, err)
}

type blockingLocator struct{}

func (blockingLocator) Locate(ctx context.Context) (Coordinates, error) {
	<-ctx.Done()
	return Coordinates{}, ctx.Err()
}

func TestLocateTimeoutBecomesLocationError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()

	_, err := Locate(ctx, blockingLocator{})
	var le *LocationError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, Timeout, le.Code)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestLocateNilLocator(t *testing.T) {
	_, err := Locate(context.Background(), nil)
	var le *LocationError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, PositionUnavailable, le.Code)
}
