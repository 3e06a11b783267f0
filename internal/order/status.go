package order

// Status 表示订单生命周期状态。
type Status int

const (
	StatusOpen Status = iota
	StatusHeld
	StatusFilled
	StatusCancelled
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "OPEN"
	case StatusHeld:
		return "HELD"
	case StatusFilled:
		return "FILLED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal 判断状态是否不可再变更。
func (s Status) IsTerminal() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusRejected
}

// IsFillable 判断订单是否仍参与撮合。
func (s Status) IsFillable() bool {
	return s == StatusOpen || s == StatusHeld
}

// Outcome 描述一次状态变更请求的处理结果。
type Outcome int

const (
	// Applied 变更已生效。
	Applied Outcome = iota
	// IgnoredUnknown 订单不存在，忽略。
	IgnoredUnknown
	// IgnoredTerminal 订单已处于终态，忽略。
	IgnoredTerminal
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case IgnoredUnknown:
		return "ignored_unknown"
	case IgnoredTerminal:
		return "ignored_terminal"
	default:
		return "unknown"
	}
}

// HeldFillPolicy 决定挂起订单部分成交后的状态。
type HeldFillPolicy int

const (
	// ReopenOnFill 挂起订单部分成交后恢复为 OPEN。
	ReopenOnFill HeldFillPolicy = iota
	// KeepHeld 挂起订单部分成交后保持 HELD，直到完全成交、撤单或拒绝。
	KeepHeld
)

func (p HeldFillPolicy) String() string {
	if p == KeepHeld {
		return "keep_held"
	}
	return "reopen_on_fill"
}
