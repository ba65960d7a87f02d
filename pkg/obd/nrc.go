package obd

import "fmt"

// NRCText describes the negative response code of a 7F reply
func NRCText(code byte) string {
	switch code {
	case 0x10:
		return "general reject"
	case 0x11:
		return "service not supported"
	case 0x12:
		return "sub-function not supported - invalid format"
	case 0x13:
		return "incorrect message length or invalid format"
	case 0x21:
		return "busy, repeat request"
	case 0x22:
		return "conditions not correct"
	case 0x24:
		return "request sequence error"
	case 0x31:
		return "request out of range"
	case 0x33:
		return "security access denied"
	case 0x78:
		return "response pending"
	case 0x7E:
		return "sub-function not supported in active session"
	case 0x7F:
		return "service not supported in active session"
	}
	return fmt.Sprintf("unknown response code %02X", code)
}

// NegativeResponse decodes a 7F <service> <code> reply line
func NegativeResponse(line string) (service, code byte, ok bool) {
	b, err := ParseReply(line)
	if err != nil || len(b) != 3 || b[0] != 0x7F {
		return 0, 0, false
	}
	return b[1], b[2], true
}
