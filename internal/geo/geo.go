package geo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LookupTimeout bounds a single location lookup.
const LookupTimeout = 5 * time.Second

type Coordinates struct {
	Latitude  float64
	Longitude float64
}

type ErrorCode int

const (
	PermissionDenied    ErrorCode = 1
	PositionUnavailable ErrorCode = 2
	Timeout             ErrorCode = 3
)

type LocationError struct {
	Code ErrorCode
	Err  error
}

func (e *LocationError) Error() string {
	var what string
	switch e.Code {
	case PermissionDenied:
		what = "location permission denied"
	case PositionUnavailable:
		what = "position unavailable"
	case Timeout:
		what = "location lookup timed out"
	default:
		what = fmt.Sprintf("location error %d", e.Code)
	}
	if e.Err != nil {
		return what + ": " + e.Err.Error()
	}
	return what
}

func (e *LocationError) Unwrap() error {
	return e.Err
}

type Locator interface {
	Locate(ctx context.Context) (Coordinates, error)
}

// Static answers with a fixed position taken from configuration.
type Static struct {
	coords   *Coordinates
	disabled bool
}

// NewStatic parses "lat,lng". An empty string yields a locator that reports
// PositionUnavailable; disabled reports PermissionDenied.
func NewStatic(spec string, disabled bool) (*Static, error) {
	s := &Static{disabled: disabled}
	if strings.TrimSpace(spec) == "" {
		return s, nil
	}

	c, err := ParseCoordinates(spec)
	if err != nil {
		return nil, err
	}
	s.coords = &c

	return s, nil
}

func (s *Static) Locate(ctx context.Context) (Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return Coordinates{}, err
	}
	if s.disabled {
		return Coordinates{}, &LocationError{Code: PermissionDenied}
	}
	if s.coords == nil {
		return Coordinates{}, &LocationError{Code: PositionUnavailable, Err: errors.New("no location configured")}
	}
	return *s.coords, nil
}

func ParseCoordinates(spec string) (Coordinates, error) {
	lat, lng, ok := strings.Cut(spec, ",")
	if !ok {
		return Coordinates{}, fmt.Errorf("location %q: want lat,lng", spec)
	}

	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("latitude: %w", err)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("longitude: %w", err)
	}
	if la < -90 || la > 90 || lo < -180 || lo > 180 {
		return Coordinates{}, fmt.Errorf("location %q out of range", spec)
	}

	return Coordinates{Latitude: la, Longitude: lo}, nil
}

// Locate runs l under LookupTimeout and normalises a deadline into a Timeout
// LocationError.
func Locate(ctx context.Context, l Locator) (Coordinates, error) {
	if l == nil {
		return Coordinates{}, &LocationError{Code: PositionUnavailable, Err: errors.New("no locator")}
	}

	ctx, cancel := context.WithTimeout(ctx, LookupTimeout)
	defer cancel()

	c, err := l.Locate(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Coordinates{}, &LocationError{Code: Timeout, Err: err}
		}
		return Coordinates{}, err
	}

	return c, nil
}
