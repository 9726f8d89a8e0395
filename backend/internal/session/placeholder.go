package session

import "strings"

// PlaceholderID 第 n 个（从 0 开始）待保存新行的临时 ID：
// 0→A, 25→Z, 26→AA, 27→AB, 701→ZZ, 702→AAA
func PlaceholderID(n int) string {
	if n < 0 {
		return ""
	}
	var buf [16]byte
	i := len(buf)
	for n >= 0 {
		i--
		buf[i] = byte('A' + n%26)
		n = n/26 - 1
	}
	return string(buf[i:])
}

// isPlaceholder 仅由大写字母组成的标识视为临时 ID
func isPlaceholder(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// normalizePlaceholder 允许输入小写字母
func normalizePlaceholder(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
