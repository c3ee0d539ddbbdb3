package actuator

import "fmt"

// The bike speaks a tiny ASCII protocol, one CR-LF terminated command
// per write. Incline and gear both use the G prefix; the bike firmware
// tells them apart by the payload shape (sign vs two bare digits).
// Historical wire format, kept as-is.

func encodeIncline(grade int) []byte {
	sign := "+"
	if grade < 0 {
		sign = "-"
	}
	abs := grade
	if abs < 0 {
		abs = -abs
	}
	return []byte(fmt.Sprintf("G%s%02d\r\n", sign, abs))
}

func encodeResistance(level int) []byte {
	return []byte(fmt.Sprintf("R%02d\r\n", level))
}

func encodeGear(front, rear int) []byte {
	return []byte(fmt.Sprintf("G%d%d\r\n", front, rear))
}
