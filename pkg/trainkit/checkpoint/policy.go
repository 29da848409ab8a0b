package checkpoint

import (
	"strconv"
	"strings"

	tkerrors "github.com/randalmurphal/trainkit/pkg/trainkit/errors"
)

// PolicyKind selects how a run picks its resume point.
type PolicyKind int

const (
	// FromScratch ignores existing checkpoints.
	FromScratch PolicyKind = iota

	// FromLatest resumes from the highest existing epoch.
	FromLatest

	// FromEpoch resumes from a specific epoch, falling back to the latest
	// earlier one when it does not exist.
	FromEpoch
)

// Policy is a resume policy. Epoch is only meaningful for FromEpoch.
type Policy struct {
	Kind  PolicyKind
	Epoch int
}

// Predefined policies.
var (
	Scratch = Policy{Kind: FromScratch}
	Latest  = Policy{Kind: FromLatest}
)

// AtEpoch returns a policy resuming from epoch n.
func AtEpoch(n int) Policy {
	return Policy{Kind: FromEpoch, Epoch: n}
}

// String returns "scratch", "latest" or "epoch:<n>".
func (p Policy) String() string {
	switch p.Kind {
	case FromScratch:
		return "scratch"
	case FromLatest:
		return "latest"
	case FromEpoch:
		return "epoch:" + strconv.Itoa(p.Epoch)
	default:
		return "unknown"
	}
}

// ParsePolicy parses the String form of a policy. A bare integer is
// accepted as shorthand for "epoch:<n>".
func ParsePolicy(s string) (Policy, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "scratch":
		return Scratch, nil
	case "latest", "":
		return Latest, nil
	}

	v = strings.TrimPrefix(v, "epoch:")
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return Policy{}, &tkerrors.ConfigError{
			Field:  "resume",
			Value:  s,
			Reason: "want scratch, latest or epoch:<n> with n >= 0",
		}
	}
	return AtEpoch(n), nil
}
