package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pushback-tool/pushback/pkg/largefile"
	"github.com/pushback-tool/pushback/pkg/remote"
	"github.com/pushback-tool/pushback/pkg/resolver"
	"github.com/pushback-tool/pushback/pkg/util"
)

// prompter asks the user to settle decisions the forcing flags left open:
// name collisions on a remote and large files flagged during triage. It reads
// line-oriented answers from the command's input, so tests can drive it with
// a canned reader.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{
		in:  bufio.NewReader(cmd.InOrStdin()),
		out: cmd.OutOrStdout(),
	}
}

// ResolveCollision presents the colliding sibling directories and asks
// whether to update the existing one, create a new one, or abort this remote.
func (p *prompter) ResolveCollision(h remote.Host, pending resolver.Resolution) (resolver.Decision, error) {
	fmt.Fprintf(p.out, "\nCollision on %s: intended directory %q does not exist, but related directories do:\n",
		h.Name, pending.Candidate.FullName)
	for _, alt := range pending.Alternatives {
		fmt.Fprintf(p.out, "  - %s\n", alt)
	}
	latest := pending.Alternatives[len(pending.Alternatives)-1]

	for {
		answer, err := p.ask(fmt.Sprintf("[u]pdate %s / [c]reate %s / [a]bort this remote? ", latest, pending.Candidate.FullName))
		if err != nil {
			return 0, err
		}
		switch answer {
		case "u", "update":
			return resolver.Update, nil
		case "c", "create":
			return resolver.Create, nil
		case "a", "abort", "":
			return 0, fmt.Errorf("aborted by user")
		}
		fmt.Fprintln(p.out, "Please answer u, c, or a.")
	}
}

// ReviewLargeFiles asks what to do with files at or above the size threshold
// and returns the ones to exclude from the transfer.
func (p *prompter) ReviewLargeFiles(files []largefile.File, thresholdMB int64) ([]largefile.File, error) {
	fmt.Fprintf(p.out, "\n%d file(s) at or above %d MB:\n", len(files), thresholdMB)
	for _, f := range files {
		fmt.Fprintf(p.out, "  %10s  %s\n", util.ByteCount(f.Size), f.Path)
	}

	for {
		answer, err := p.ask("[k]eep all / [i]gnore all / [s]elect per file? ")
		if err != nil {
			return nil, err
		}
		switch answer {
		case "k", "keep", "":
			return nil, nil
		case "i", "ignore":
			return files, nil
		case "s", "select":
			return p.selectPerFile(files)
		}
		fmt.Fprintln(p.out, "Please answer k, i, or s.")
	}
}

func (p *prompter) selectPerFile(files []largefile.File) ([]largefile.File, error) {
	var excluded []largefile.File
	for _, f := range files {
		keep, err := p.confirmErr(fmt.Sprintf("Keep %s (%s)?", f.Path, util.ByteCount(f.Size)), true)
		if err != nil {
			return nil, err
		}
		if !keep {
			excluded = append(excluded, f)
		}
	}
	return excluded, nil
}

// Confirm asks a yes/no question and falls back to def on read errors or an
// empty answer.
func (p *prompter) Confirm(question string, def bool) bool {
	answer, err := p.confirmErr(question, def)
	if err != nil {
		return def
	}
	return answer
}

func (p *prompter) confirmErr(question string, def bool) (bool, error) {
	suffix := " [Y/n] "
	if !def {
		suffix = " [y/N] "
	}
	for {
		answer, err := p.ask(question + suffix)
		if err != nil {
			return def, err
		}
		switch answer {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		case "":
			return def, nil
		}
		fmt.Fprintln(p.out, "Please answer y or n.")
	}
}

// ask prints the prompt and reads one lowercased, trimmed answer line.
func (p *prompter) ask(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading answer: %w", err)
	}
	return strings.ToLower(strings.TrimSpace(line)), nil
}
