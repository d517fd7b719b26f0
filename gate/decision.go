package gate

// Outcome tags which branch PreCheck took. The bypass is a recognized,
// logged, successful path and every call site must be able to tell the two
// apart, so the outcome is carried explicitly instead of being implied.
type Outcome int

const (
	// OutcomeVerified means the trailing signature was checked against the
	// account's trusted signer and matched.
	OutcomeVerified Outcome = iota
	// OutcomeBypassed means verification was skipped because the liveness
	// oracle reported the signer offline.
	OutcomeBypassed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeVerified:
		return "verified"
	case OutcomeBypassed:
		return "bypassed"
	}
	return "unknown"
}

// Decision is the result of a successful PreCheck. ExecutionHash is the
// digest that was verified (or, on the bypass path, the digest over the full
// payload, computed for audit logging only). Payload is the effective action
// to execute: on the verified path the signature suffix is already stripped
// and must never be passed on.
type Decision struct {
	Outcome       Outcome
	ExecutionHash []byte
	Payload       []byte
}
