package arp

func (op Operation) String() string {
	switch op {
	case OpRequest:
		return "request"
	case OpReply:
		return "reply"
	default:
		return "unknown"
	}
}

func (r Result) String() string {
	switch r {
	case ResultError:
		return "ERROR"
	case ResultQuery:
		return "QUERY"
	case ResultFound:
		return "FOUND"
	default:
		return "unknown"
	}
}
