package cmd

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// readPassword is swapped out in tests
var readPassword = term.ReadPassword

// promptPassword asks for a password on the terminal without echo
func promptPassword(w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if len(pw) == 0 {
		return "", fmt.Errorf("password must not be empty")
	}
	return string(pw), nil
}
