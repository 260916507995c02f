package mcp

import "fmt"

func getStringArg(args map[string]interface{}, key string) string {
	val, ok := args[key]
	if !ok || val == nil {
		return ""
	}
	switch v := val.(type) {
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// getBoolArg extracts a boolean argument, reporting whether it was present
// and well-typed. Mutating tools refuse to guess a default for their state
// argument.
func getBoolArg(args map[string]interface{}, key string) (value, ok bool) {
	val, present := args[key]
	if !present {
		return false, false
	}
	b, isBool := val.(bool)
	return b, isBool
}

// getIntArg extracts an integer argument; JSON numbers arrive as float64.
func getIntArg(args map[string]interface{}, key string) (value int, ok bool) {
	val, present := args[key]
	if !present || val == nil {
		return 0, false
	}
	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
