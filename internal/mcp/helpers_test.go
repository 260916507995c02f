package mcp

import "testing"

func TestGetStringArg(t *testing.T) {
	args := map[string]interface{}{
		"name":   "value",
		"number": 42.0,
		"empty":  nil,
	}

	tests := []struct {
		name string
		key  string
		want string
	}{
		{"string value", "name", "value"},
		{"numeric value stringified", "number", "42"},
		{"nil value", "empty", ""},
		{"missing key", "missing", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getStringArg(args, tt.key); got != tt.want {
				t.Errorf("getStringArg(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestGetBoolArg(t *testing.T) {
	args := map[string]interface{}{
		"on":     true,
		"off":    false,
		"string": "true",
	}

	tests := []struct {
		name   string
		key    string
		want   bool
		wantOK bool
	}{
		{"true", "on", true, true},
		{"false present", "off", false, true},
		{"string is not a bool", "string", false, false},
		{"missing", "missing", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := getBoolArg(args, tt.key)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("getBoolArg(%q) = (%v, %v), want (%v, %v)", tt.key, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestGetIntArg(t *testing.T) {
	args := map[string]interface{}{
		"json":   15.0,
		"int":    20,
		"int64":  int64(25),
		"string": "30",
		"empty":  nil,
	}

	tests := []struct {
		name   string
		key    string
		want   int
		wantOK bool
	}{
		{"json float64", "json", 15, true},
		{"native int", "int", 20, true},
		{"int64", "int64", 25, true},
		{"string is not an int", "string", 0, false},
		{"nil", "empty", 0, false},
		{"missing", "missing", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := getIntArg(args, tt.key)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("getIntArg(%q) = (%d, %v), want (%d, %v)", tt.key, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
