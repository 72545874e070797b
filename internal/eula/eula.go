// Package eula records the agreement to the Minecraft EULA that a dedicated
// server requires before it starts.
package eula

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/schaermu/mcmod/internal/errkind"
	"github.com/schaermu/mcmod/internal/fsutil"
)

const (
	FileName = "eula.txt"
	URL      = "https://account.mojang.com/documents/minecraft_eula"
)

// Prompter asks the user to agree when no agreement is on file.
type Prompter struct {
	// AutoAgree skips the question (MCMOD_EULA_AUTO_AGREE).
	AutoAgree bool

	In  io.Reader
	Out io.Writer
	// Interactive reports whether In is a terminal the user can answer on.
	Interactive func() bool

	logger *slog.Logger
}

// NewPrompter creates a prompter on the process's stdin and stderr
func NewPrompter(autoAgree bool, logger *slog.Logger) *Prompter {
	return &Prompter{
		AutoAgree: autoAgree,
		In:        os.Stdin,
		Out:       os.Stderr,
		Interactive: func() bool {
			fd := os.Stdin.Fd()
			return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		},
		logger: logger,
	}
}

// Agreed reports whether runDir/eula.txt already holds eula=true.
func Agreed(runDir string) (bool, error) {
	data, err := os.ReadFile(filepath.Join(runDir, FileName))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", FileName, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "eula=true" {
			return true, nil
		}
	}
	return false, nil
}

// Ensure makes sure the EULA is agreed to in runDir, asking if needed.
// Declining is reported as Cancelled.
func (p *Prompter) Ensure(runDir string) error {
	ok, err := Agreed(runDir)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	if p.AutoAgree {
		p.logger.Info("automatically agreeing to the EULA because MCMOD_EULA_AUTO_AGREE is set", "eula", URL)
	} else if err := p.ask(); err != nil {
		return err
	}

	if err := fsutil.WriteFileAtomic(filepath.Join(runDir, FileName), []byte("eula=true"), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", FileName, err)
	}
	return nil
}

func (p *Prompter) ask() error {
	if p.Interactive != nil && !p.Interactive() {
		return errkind.New(errkind.Cancelled,
			"agreeing to the EULA (%s) is required to launch the server; set MCMOD_EULA_AUTO_AGREE=true to agree non-interactively", URL)
	}

	fmt.Fprintln(p.Out, "Agreeing to the EULA is required to launch the server")
	fmt.Fprintf(p.Out, "Please read the EULA at %s\n", URL)
	fmt.Fprintln(p.Out, "You can set MCMOD_EULA_AUTO_AGREE=true to automatically agree to the EULA")
	fmt.Fprint(p.Out, "Do you want to agree to the EULA? (y/N) ")

	answer, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read answer: %w", err)
	}
	if strings.ToLower(strings.TrimSpace(answer)) != "y" {
		return errkind.New(errkind.Cancelled, "EULA not agreed")
	}
	return nil
}
