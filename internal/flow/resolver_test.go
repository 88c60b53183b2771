package flow

import (
	"reflect"
	"testing"

	"github.com/hamavrikan/leadbot/internal/models"
)

func TestContainsTrigger(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"שלום", true},
		{"היי, כמה עולה ניקוי ספה?", true},
		{"בוקר טוב לך", true},
		{"מה נשמע", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ContainsTrigger(tt.text); got != tt.want {
			t.Errorf("ContainsTrigger(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestResolveOption(t *testing.T) {
	options := []string{"A", "B", "C"}
	tests := []struct {
		input string
		want  string
	}{
		{"2", "B"},
		{"B", "B"},
		{"Z", "Z"},
		{"  3 ", "C"},
		{"0", "0"},
		{"4", "4"},
	}
	for _, tt := range tests {
		if got := ResolveOption(tt.input, options); got != tt.want {
			t.Errorf("ResolveOption(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestResolveOptionHebrewVocabulary(t *testing.T) {
	if got := ResolveOption("1", mattressTypes); got != "יחיד" {
		t.Errorf("ResolveOption(1) = %q", got)
	}
	if got := ResolveOption("זוגי בבקשה", mattressTypes); got != "זוגי" {
		t.Errorf("substring match = %q", got)
	}
	if got := ResolveOption("לא יודע", mattressTypes); got != "לא יודע" {
		t.Errorf("free-form answer should pass through, got %q", got)
	}
}

func TestParseItems(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"1,2", []string{models.ItemSofa, models.ItemMattress}},
		{"2 1", []string{models.ItemMattress, models.ItemSofa}},
		{"1 2 3", []string{models.ItemSofa, models.ItemMattress, models.ItemCarpet}},
		{"1,1,2", []string{models.ItemSofa, models.ItemMattress}},
		{"ספה ושטיח", []string{models.ItemSofa, models.ItemCarpet}},
		{"כלום", nil},
	}
	for _, tt := range tests {
		if got := ParseItems(tt.input); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseItems(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestIsSkip(t *testing.T) {
	for _, text := range []string{"0", " 0 ", "דלג"} {
		if !IsSkip(text) {
			t.Errorf("IsSkip(%q) = false, want true", text)
		}
	}
	for _, text := range []string{"", "1", "אין תמונה"} {
		if IsSkip(text) {
			t.Errorf("IsSkip(%q) = true, want false", text)
		}
	}
}

func TestHintForCoversQuestionStates(t *testing.T) {
	for _, state := range []models.State{
		models.StateAwaitingLocation, models.StateAwaitingItem,
		models.StateMattressType, models.StateSofaType,
		models.StateCarpetType, models.StateMultipleSelect,
	} {
		if hintFor(state) == nil {
			t.Errorf("hintFor(%s) = nil", state)
		}
	}
	if hintFor(models.StateIdle) != nil {
		t.Error("idle state should have no hint")
	}
}
