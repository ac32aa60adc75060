package redeem

import "context"

type Outcome int

const (
	Failure Outcome = iota
	Success
	Indeterminate
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Indeterminate:
		return "indeterminate"
	default:
		return "failure"
	}
}

// Result is what a redemption attempt reports. Faults never escape as errors;
// they arrive here as a Failure with a diagnostic message.
type Result struct {
	Outcome Outcome
	Message string
}

func (r Result) OK() bool { return r.Outcome == Success }

type Redeemer interface {
	Redeem(ctx context.Context, playerID, code string) Result
}

func failure(msg string) Result { return Result{Outcome: Failure, Message: msg} }
