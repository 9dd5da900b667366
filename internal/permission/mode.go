package permission

import (
	"fmt"
	"io"
)

// Host is an OS permission backend.
type Host interface {
	Checker
	Requester
}

// NewHost returns the backend for a configured mode: "allow", "deny" or
// "prompt". The prompt reads answers from in and writes to out.
func NewHost(mode, grantFile string, in io.Reader, out io.Writer) (Host, error) {
	switch mode {
	case "allow":
		return Static{Allow: true}, nil
	case "deny":
		return Static{Allow: false}, nil
	case "prompt":
		return &Prompt{In: in, Out: out, GrantFile: grantFile}, nil
	}
	return nil, fmt.Errorf("unknown permission mode %q", mode)
}
