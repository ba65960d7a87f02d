package obdcan

// Reply is the completion status of a request. Any positive value outside the
// enumeration is an ECU specific code.
type Reply int

const (
	ReplyOK Reply = iota + 1
	ReplyCmdWrong
	ReplyDataError
	ReplyNoData
	ReplyError
	ReplyUnableToConnect
	ReplyNone
	ReplyBusBusy
	ReplyBusError
	ReplyChecksumError
	ReplyWiringError
)

func (r Reply) String() string {
	switch r {
	case 0:
		return "0"
	case ReplyOK:
		return "OK"
	case ReplyCmdWrong:
		return "CMD_WRONG"
	case ReplyDataError:
		return "DATA_ERROR"
	case ReplyNoData:
		return "NO_DATA"
	case ReplyError:
		return "ERROR"
	case ReplyUnableToConnect:
		return "UNABLE_TO_CONNECT"
	case ReplyNone:
		return "NONE"
	case ReplyBusBusy:
		return "BUS_BUSY"
	case ReplyBusError:
		return "BUS_ERROR"
	case ReplyChecksumError:
		return "CHECKSUM_ERROR"
	case ReplyWiringError:
		return "WIRING_ERROR"
	default:
		return "ECU_CODE"
	}
}
