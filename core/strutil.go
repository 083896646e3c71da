package core

// itoa converts an integer to a string without pulling in fmt, which is
// too large for the AVR flash budget
func itoa(n int) string {
	if n < 0 {
		return "-" + utoa(uint32(-n))
	}
	return utoa(uint32(n))
}

// utoa converts an unsigned integer to a string
func utoa(n uint32) string {
	if n == 0 {
		return "0"
	}

	var buf [10]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}

	return string(buf[pos:])
}

// atou parses a non-empty run of decimal digits
func atou(s string) (uint32, bool) {
	if s == "" || len(s) > 9 {
		return 0, false
	}
	var n uint32
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint32(c-'0')
	}
	return n, true
}
