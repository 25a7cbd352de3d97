package models

import "testing"

func TestTempRemoteIDs(t *testing.T) {
	id := NewTempRemoteID()
	if !IsTempRemoteID(id) {
		t.Errorf("generated placeholder %q not recognized", id)
	}
	if id == NewTempRemoteID() {
		t.Error("placeholders must be unique")
	}
	if IsTempRemoteID("u1_deadbeef_1700000000000") {
		t.Error("real document keys must not match the placeholder prefix")
	}
}

func TestHasRealRemoteID(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want bool
	}{
		{"empty", Item{}, false},
		{"placeholder", Item{RemoteID: TempIDPrefix + "abc"}, false},
		{"real", Item{RemoteID: "u1_deadbeef_1"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.HasRealRemoteID(); got != tt.want {
				t.Errorf("HasRealRemoteID() = %v; want %v", got, tt.want)
			}
		})
	}
}
