package reply

type Decision int

const (
	Proceed Decision = iota
	Refuse
)

// Decide refuses further bargaining once a price message arrives with the
// round count already at the cap.
func Decide(intent Intent, rounds, maxRounds int) Decision {
	if intent == IntentPrice && rounds >= maxRounds {
		return Refuse
	}
	return Proceed
}
