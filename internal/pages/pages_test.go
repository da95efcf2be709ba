package pages

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(Options{
		Now:              func() time.Time { return time.Date(2031, 5, 4, 0, 0, 0, 0, time.UTC) },
		MaxDays:          7,
		DefaultLatitude:  28.6139,
		DefaultLongitude: 77.209,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func TestRender_IndexInjectsYear(t *testing.T) {
	r := newTestRenderer(t)
	var buf bytes.Buffer
	if err := r.Render(&buf, Index); err != nil {
		t.Fatalf("Render(index) error = %v", err)
	}
	body := buf.String()
	for _, want := range []string{"2031", "Wind Speed (km/h)", `value="28.6139"`, `<option value="7" selected>`} {
		if !strings.Contains(body, want) {
			t.Errorf("index page missing %q", want)
		}
	}
}

func TestRender_About(t *testing.T) {
	r := newTestRenderer(t)
	var buf bytes.Buffer
	if err := r.Render(&buf, About); err != nil {
		t.Fatalf("Render(about) error = %v", err)
	}
	body := buf.String()
	for _, want := range []string{"2031", "Precipitation (mm)", "1 to 7 days"} {
		if !strings.Contains(body, want) {
			t.Errorf("about page missing %q", want)
		}
	}
}

func TestRender_UnknownPage(t *testing.T) {
	r := newTestRenderer(t)
	var buf bytes.Buffer
	if err := r.Render(&buf, "missing"); err == nil {
		t.Fatal("Render(missing) expected error, got nil")
	}
	if buf.Len() != 0 {
		t.Errorf("Render(missing) wrote %d bytes", buf.Len())
	}
}

func TestTargetLabels(t *testing.T) {
	got := targetLabels([]string{"temperature", "wind_speed"})
	if got[0].Label != "Temperature" || got[0].Unit != "°C" {
		t.Errorf("targetLabels()[0] = %+v", got[0])
	}
	if got[1].Label != "Wind Speed" || got[1].Unit != "km/h" {
		t.Errorf("targetLabels()[1] = %+v", got[1])
	}
}
