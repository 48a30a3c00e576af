package pkg

// Contains check source have target
func Contains(slice []string, val string) bool {
	for _, v := range slice {
		if v == val {
			return true
		}
	}
	return false
}

// ContainsAll every element of required is in slice, false when required is empty
func ContainsAll(slice, required []string) bool {
	have := make(map[string]struct{}, len(slice))
	for _, v := range slice {
		have[v] = struct{}{}
	}
	for _, r := range required {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return len(required) > 0
}

// Remove return a copy of slice without val
func Remove(slice []string, val string) []string {
	out := make([]string, 0, len(slice))
	for _, v := range slice {
		if v != val {
			out = append(out, v)
		}
	}
	return out
}
