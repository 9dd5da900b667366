package permission

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Static answers every check and request with a fixed decision.
type Static struct {
	Allow bool
}

func (s Static) Granted() bool {
	return s.Allow
}

func (s Static) Request(l Listener) {
	go l.OnPermissionResult(s.Allow)
}

// Prompt asks on a terminal and remembers a grant in GrantFile so later
// starts see the permission as already granted.
type Prompt struct {
	In        io.Reader
	Out       io.Writer
	GrantFile string
}

func (p *Prompt) Granted() bool {
	if p.GrantFile == "" {
		return false
	}
	_, err := os.Stat(p.GrantFile)
	return err == nil
}

func (p *Prompt) Request(l Listener) {
	go func() {
		l.OnExplanationNeeded([]string{Location})
		fmt.Fprintln(p.Out, "bikestreets shows your position on the map and follows it while you ride.")
		fmt.Fprint(p.Out, "Allow access to your location? [y/N] ")

		answer, err := bufio.NewReader(p.In).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			l.OnPermissionResult(false)
			return
		}

		answer = strings.ToLower(strings.TrimSpace(answer))
		granted := answer == "y" || answer == "yes"
		if granted {
			if err := p.remember(); err != nil {
				fmt.Fprintf(p.Out, "Warning: could not save permission: %v\n", err)
			}
		}
		l.OnPermissionResult(granted)
	}()
}

// Revoke forgets a remembered grant.
func (p *Prompt) Revoke() error {
	if p.GrantFile == "" {
		return nil
	}
	err := os.Remove(p.GrantFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (p *Prompt) remember() error {
	if p.GrantFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p.GrantFile), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p.GrantFile, []byte(Location+"\n"), 0o600)
}
