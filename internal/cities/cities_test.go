package cities

import (
	"testing"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

func TestAll_TenUniqueNames(t *testing.T) {
	all := All()
	if len(all) != 10 {
		t.Fatalf("len(All()) = %d, want 10", len(all))
	}
	seen := make(map[string]bool)
	for _, c := range all {
		if seen[c.Name] {
			t.Errorf("duplicate city name %q", c.Name)
		}
		seen[c.Name] = true
	}
}

func TestAll_ReturnsCopy(t *testing.T) {
	all := All()
	all[0].Name = "changed"
	if Default().Name == "changed" {
		t.Error("All() exposed the underlying table")
	}
}

func TestLookup(t *testing.T) {
	c, ok := Lookup("부산")
	if !ok {
		t.Fatal("Lookup(부산) ok = false")
	}
	if c.Coordinates.Latitude != 35.1796 {
		t.Errorf("Latitude = %f, want 35.1796", c.Coordinates.Latitude)
	}
	if _, ok := Lookup("Seattle"); ok {
		t.Error("Lookup(Seattle) ok = true, want false")
	}
}

func TestNearest(t *testing.T) {
	tests := []struct {
		name string
		pos  models.Coordinates
		want string
	}{
		{"exact seoul", models.Coordinates{Latitude: 37.5665, Longitude: 126.978}, "서울"},
		{"near busan", models.Coordinates{Latitude: 35.10, Longitude: 129.03}, "부산"},
		{"near daejeon", models.Coordinates{Latitude: 36.30, Longitude: 127.40}, "대전"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Nearest(tt.pos).Name; got != tt.want {
				t.Errorf("Nearest() = %q, want %q", got, tt.want)
			}
		})
	}
}
